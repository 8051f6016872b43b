package badger

import (
	"encoding/binary"

	"github.com/poiesic/rowseek/core"
)

// Key prefixes for different data types
const (
	sourceDescPrefix = "srcdesc:"
	sourceRowPrefix  = "srcrow:"
)

// makeSourceDescKey generates the descriptor key for a source. Descriptors are keyed
// by the raw ID so a prefix scan lists them in ID order.
func makeSourceDescKey(id string) []byte {
	return []byte(sourceDescPrefix + id)
}

// makeSourceRowPrefix generates the prefix shared by all rows of a source.
// Format: prefix:hash(id)
func makeSourceRowPrefix(id string) []byte {
	buf := make([]byte, len(sourceRowPrefix)+8)
	offset := copy(buf, sourceRowPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.IDFromContent(id)))
	return buf
}

// makeSourceRowKey generates a composite key for one row.
// Format: prefix:hash(id):rowID
func makeSourceRowKey(id string, rowID int) []byte {
	prefix := makeSourceRowPrefix(id)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort matches row order
	binary.BigEndian.PutUint64(buf[offset:], uint64(rowID))
	return buf
}

// rowIDFromKey extracts the row ID from a row key.
func rowIDFromKey(key []byte) int {
	return int(binary.BigEndian.Uint64(key[len(key)-8:]))
}
