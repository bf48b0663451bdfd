// Package tuindex is an incremental, multi-language source indexer. It
// parses translation units with tree-sitter, caches the resulting documents
// by content hash, resolves references across files through a symbol table,
// mirrors the result into SQLite and answers definition, reference and
// completion queries, in-process or over a socket.
//
// # Pipeline
//
//  1. Build: each file is hashed. A cache hit reuses the stored document;
//     a miss parses the file (tree-sitter plus an optional Risor symbol
//     script) and stores the result. Files are processed in parallel.
//
//  2. Resolve: a fresh symbol table is filled from every document in input
//     order, and each unresolved reference is pointed at the first symbol
//     with the same name and kind elsewhere.
//
//  3. Index: definitions and references are rewritten into SQLite in one
//     transaction.
//
// # Usage
//
//	e, err := tuindex.New(".tuindex/cache", ".tuindex/index.db", tuindex.WithScriptsFS(tuindex.Scripts()))
//	if err != nil { ... }
//	defer e.Close()
//
//	res, err := e.Reload(ctx, files, nil)
//	loc, ok := e.Definition("main.go", 10, 5)
//	items, err := e.Complete("main.go", 12, 3, nil, 20)
//
//	q := e.Query()
//	refs, err := q.ReferencesByName("Helper")
//
// # Incremental builds
//
// Unchanged files are never reparsed; changing one byte of a file reparses
// exactly that file. Changing a symbol script invalidates the whole cache.
// A corrupt cache or index is never repaired: clear it and rebuild.
package tuindex
