// Package source turns exported files and SQL tables into loader.Readers.
//
// Supported formats are chosen by file extension:
//
//	.csv            comma separated, optional legacy charset
//	.tsv            tab separated
//	.json           array of objects
//	.ndjson .jsonl  one object per line
//	.html .htm      first <table> of the document
//
// Discover walks a directory and returns one loader.Source per supported file.
// SQL tables are exposed through SQLSources using the sqlite, pgx and sqlserver
// drivers.
package source
