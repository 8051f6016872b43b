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

// Package storage provides the row cache abstraction for rowseek.
//
// Parsing large exports is the slow part of a cold start. The row cache keeps the
// already-parsed rows of every source so later runs can restore them directly into
// the loader. It is strictly a cache: the search index is always rebuilt in memory.
//
// # Constructor Return Type Pattern
//
// Public constructors return the SourceRepository interface to keep consumers
// independent of the backing store:
//
//	repo, err := badger.NewRepository("/path/to/cache")  // returns storage.SourceRepository
//
// # Usage
//
//	repo, err := badger.NewRepository(dir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	reader := storage.NewCachedReader(repo, "clients")
//	desc, err := catalog.Load(ctx, "clients", "", reader, loader.WithOrigin(loader.OriginCache))
//
// Use in tests with in-memory storage:
//
//	repo, err := badger.NewMemoryRepository()
//
// # Encoding
//
// Descriptors and row values are encoded with mus-go serializers. Times are stored
// as RFC 3339 text so their offsets survive a round trip.
package storage
