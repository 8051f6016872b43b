// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package search runs queries over every loaded dataset.
//
// The Searcher executes a query in stages:
//   - Validate the QuerySpec before touching any row
//   - Take one catalog snapshot and scope it to the requested sources
//   - Resolve target columns once through the schema index
//   - Filter and score rows in chunks on a bounded worker pool
//   - Fold chunk outcomes into a de-duplicated, deterministically ordered result set
//
// Queries never mutate shared state, so any number may run at once against the
// same snapshot.
package search
