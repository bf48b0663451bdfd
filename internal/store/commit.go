package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/symtab"
)

// MetaLastRebuild is the metadata key holding the time of the last rebuild.
const MetaLastRebuild = "last_rebuild"

// RebuildFromSymbolTable replaces the whole index with the definitions in
// table and the references found in docs.
func (s *Store) RebuildFromSymbolTable(table *symtab.Table, docs []*ast.Document) error {
	batch := NewBatchedStore()
	batch.AddTable(table)
	for _, d := range docs {
		batch.AddDocument(d)
	}
	return s.CommitBatch(batch)
}

// CommitBatch replaces the contents of the definitions and references
// tables with the buffered rows within a single transaction, then records
// the rebuild time. Readers see either the old index or the new one.
//
// Definitions are written with INSERT OR REPLACE, so a repeated symbol id
// keeps the last row written.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM "references"`,
		`DELETE FROM definitions`,
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("commit batch: clear: %w", err)
		}
	}

	batch.mu.Lock()
	defs := batch.Definitions
	refs := batch.References
	batch.mu.Unlock()

	defStmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO definitions (symbol_id, name, kind, file, line, "column")
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("commit batch: prepare definitions: %w", err)
	}
	defer defStmt.Close()
	for i := range defs {
		if _, err := insertDefinitionTx(defStmt, &defs[i]); err != nil {
			return fmt.Errorf("commit batch: definition %q: %w", defs[i].SymbolID, err)
		}
	}

	refStmt, err := tx.Prepare(
		`INSERT INTO "references" (name, kind, file, line, "column", target_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("commit batch: prepare references: %w", err)
	}
	defer refStmt.Close()
	for i := range refs {
		if _, err := insertReferenceTx(refStmt, &refs[i]); err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", refs[i].Name, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		MetaLastRebuild, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("commit batch: metadata: %w", err)
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---

func insertDefinitionTx(stmt *sql.Stmt, d *Definition) (int64, error) {
	res, err := stmt.Exec(d.SymbolID, d.Name, d.Kind, d.File, d.Line, d.Column)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertReferenceTx(stmt *sql.Stmt, r *Reference) (int64, error) {
	res, err := stmt.Exec(r.Name, r.Kind, r.File, r.Line, r.Column, r.TargetSymbolID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
