package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// DefinitionCols is the column list for definition queries.
const DefinitionCols = `id, symbol_id, name, kind, file, line, "column"`

// ReferenceCols is the column list for reference queries.
const ReferenceCols = `id, name, kind, file, line, "column", target_symbol_id`

type rowScanner interface{ Scan(...any) error }

func scanDefinition(scanner rowScanner) (*Definition, error) {
	d := &Definition{}
	if err := scanner.Scan(&d.ID, &d.SymbolID, &d.Name, &d.Kind, &d.File, &d.Line, &d.Column); err != nil {
		return nil, err
	}
	return d, nil
}

func scanReference(scanner rowScanner) (*Reference, error) {
	r := &Reference{}
	var target sql.NullString
	if err := scanner.Scan(&r.ID, &r.Name, &r.Kind, &r.File, &r.Line, &r.Column, &target); err != nil {
		return nil, err
	}
	if target.Valid {
		r.TargetSymbolID = &target.String
	}
	return r, nil
}

func (s *Store) queryDefinitions(query string, args ...any) ([]*Definition, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []*Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// --- Definitions ---

func (s *Store) DefinitionsByName(name string) ([]*Definition, error) {
	defs, err := s.queryDefinitions("SELECT "+DefinitionCols+" FROM definitions WHERE name = ? ORDER BY id", name)
	if err != nil {
		return nil, fmt.Errorf("definitions by name: %w", err)
	}
	return defs, nil
}

func (s *Store) DefinitionsInFile(file string) ([]*Definition, error) {
	defs, err := s.queryDefinitions("SELECT "+DefinitionCols+" FROM definitions WHERE file = ? ORDER BY id", file)
	if err != nil {
		return nil, fmt.Errorf("definitions in file: %w", err)
	}
	return defs, nil
}

// DefinitionsAt returns definitions whose name span on line covers column.
func (s *Store) DefinitionsAt(file string, line, column int) ([]*Definition, error) {
	defs, err := s.queryDefinitions(
		"SELECT "+DefinitionCols+` FROM definitions
		 WHERE file = ? AND line = ? AND "column" <= ? AND "column" + length(name) >= ?
		 ORDER BY id`,
		file, line, column, column,
	)
	if err != nil {
		return nil, fmt.Errorf("definitions at: %w", err)
	}
	return defs, nil
}

// DefinitionByID returns the definition with the given symbol id, or nil.
func (s *Store) DefinitionByID(symbolID string) (*Definition, error) {
	d, err := scanDefinition(s.db.QueryRow("SELECT "+DefinitionCols+" FROM definitions WHERE symbol_id = ?", symbolID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("definition by id: %w", err)
	}
	return d, nil
}

func (s *Store) AllDefinitions() ([]*Definition, error) {
	defs, err := s.queryDefinitions("SELECT " + DefinitionCols + " FROM definitions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("all definitions: %w", err)
	}
	return defs, nil
}

// --- References ---

func (s *Store) ReferencesByName(name string) ([]*Reference, error) {
	refs, err := s.queryReferences(`SELECT `+ReferenceCols+` FROM "references" WHERE name = ? ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("references by name: %w", err)
	}
	return refs, nil
}

// ReferencesTo returns every reference resolved to symbolID.
func (s *Store) ReferencesTo(symbolID string) ([]*Reference, error) {
	refs, err := s.queryReferences(`SELECT `+ReferenceCols+` FROM "references" WHERE target_symbol_id = ? ORDER BY id`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	return refs, nil
}

// ReferencesAt returns references whose name span on line covers column.
func (s *Store) ReferencesAt(file string, line, column int) ([]*Reference, error) {
	refs, err := s.queryReferences(
		`SELECT `+ReferenceCols+` FROM "references"
		 WHERE file = ? AND line = ? AND "column" <= ? AND "column" + length(name) >= ?
		 ORDER BY id`,
		file, line, column, column,
	)
	if err != nil {
		return nil, fmt.Errorf("references at: %w", err)
	}
	return refs, nil
}

func (s *Store) AllReferences() ([]*Reference, error) {
	refs, err := s.queryReferences(`SELECT ` + ReferenceCols + ` FROM "references" ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all references: %w", err)
	}
	return refs, nil
}

// Counts returns row counts for both tables.
func (s *Store) Counts() (Counts, error) {
	var c Counts
	err := s.db.QueryRow(
		`SELECT
			(SELECT COUNT(*) FROM definitions),
			(SELECT COUNT(*) FROM "references"),
			(SELECT COUNT(*) FROM "references" WHERE target_symbol_id IS NOT NULL),
			(SELECT COUNT(DISTINCT file) FROM definitions)`,
	).Scan(&c.Definitions, &c.References, &c.Resolved, &c.Files)
	if err != nil {
		return Counts{}, fmt.Errorf("counts: %w", err)
	}
	return c, nil
}
