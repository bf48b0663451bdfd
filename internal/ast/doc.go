// Package ast defines the vocabulary shared by every stage of the indexing
// pipeline: source locations, symbols, the node tree produced by a
// front-end, and the per-file document that bundles a tree with its flat
// symbol list.
//
// Cross references between symbols are plain id strings (see [SymbolID]),
// never pointers, so documents can be cached, copied and merged freely.
package ast
