package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/tuindex"
	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/complete"
	"github.com/jward/tuindex/internal/store"
	"github.com/jward/tuindex/internal/symtab"
)

type queryFlags struct {
	limit  int
	offset int
	sort   string
	order  string
}

func (c *cli) queryCmd() *cobra.Command {
	var qf queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the symbol index",
		Long:  "Run queries against an indexed directory. Line and column numbers are 1-based.",
	}
	cmd.PersistentFlags().IntVar(&qf.limit, "limit", 50, "pagination limit (max 500)")
	cmd.PersistentFlags().IntVar(&qf.offset, "offset", 0, "pagination offset")
	cmd.PersistentFlags().StringVar(&qf.sort, "sort", "name", "sort field: name|kind|file|ref_count")
	cmd.PersistentFlags().StringVar(&qf.order, "order", "asc", "sort order: asc|desc")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "definitions <name>",
			Short: "List definitions of a name",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runDefinitions,
		},
		&cobra.Command{
			Use:   "references <name> | <file> <line> <col>",
			Short: "List references by name, or to the symbol at a position",
			Args:  oneOrThreeArgs,
			RunE:  c.runReferences,
		},
		&cobra.Command{
			Use:   "at <file> <line> <col>",
			Short: "Find the definition of the symbol at a position",
			Args:  cobra.ExactArgs(3),
			RunE:  c.runAt,
		},
		c.completeCmd(),
		c.symbolsCmd(&qf),
		&cobra.Command{
			Use:   "stats",
			Short: "Summarize the index",
			Args:  cobra.NoArgs,
			RunE:  c.runStats,
		},
	)
	return cmd
}

func oneOrThreeArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return fmt.Errorf("accepts <name> or <file> <line> <col>, received %d args", len(args))
	}
	return nil
}

// openStore opens the index for the repository containing the working
// directory. The index must already exist.
func (c *cli) openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	cfg, err := c.loadConfig(cwd)
	if err != nil {
		return nil, err
	}
	dbPath := cfg.IndexPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'tuindex index' first)", dbPath)
	}
	return store.Open(dbPath)
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return filepath.Clean(file), nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parsePosition parses <file> <line> <col> with 1-based line and column.
func parsePosition(args []string) (string, int, int, error) {
	file, err := resolveFilePath(args[0])
	if err != nil {
		return "", 0, 0, err
	}
	line, err := parsePositiveArg(args[1], "line")
	if err != nil {
		return "", 0, 0, err
	}
	col, err := parsePositiveArg(args[2], "col")
	if err != nil {
		return "", 0, 0, err
	}
	return file, line, col, nil
}

func parsePositiveArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be at least 1", name, value)
	}
	return n, nil
}

func locationsToCLI(locs []tuindex.Location) []CLILocation {
	out := make([]CLILocation, len(locs))
	for i, l := range locs {
		out[i] = CLILocation{File: l.File, Line: l.Line, Column: l.Column, Name: l.Name, Kind: l.Kind, SymbolID: l.SymbolID}
	}
	return out
}

func (c *cli) outputLocations(cmd *cobra.Command, command string, locs []tuindex.Location) error {
	n := len(locs)
	return c.outputResult(cmd.OutOrStdout(), CLIResult{Command: command, Results: locationsToCLI(locs), TotalCount: &n})
}

func (c *cli) runDefinitions(cmd *cobra.Command, args []string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	s, err := c.openStore()
	if err != nil {
		return c.outputError(out, errOut, "definitions", err)
	}
	defer s.Close()

	locs, err := tuindex.NewQueryBuilder(s).DefinitionsByName(args[0])
	if err != nil {
		return c.outputError(out, errOut, "definitions", err)
	}
	return c.outputLocations(cmd, "definitions", locs)
}

func (c *cli) runReferences(cmd *cobra.Command, args []string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	s, err := c.openStore()
	if err != nil {
		return c.outputError(out, errOut, "references", err)
	}
	defer s.Close()
	qb := tuindex.NewQueryBuilder(s)

	if len(args) == 1 {
		locs, err := qb.ReferencesByName(args[0])
		if err != nil {
			return c.outputError(out, errOut, "references", err)
		}
		return c.outputLocations(cmd, "references", locs)
	}

	file, line, col, err := parsePosition(args)
	if err != nil {
		return c.outputError(out, errOut, "references", err)
	}
	defs, err := qb.DefinitionAt(file, line, col)
	if err != nil {
		return c.outputError(out, errOut, "references", err)
	}
	if len(defs) == 0 {
		return c.outputError(out, errOut, "references", fmt.Errorf("no symbol found at %s:%d:%d", file, line, col))
	}
	var locs []tuindex.Location
	for _, d := range defs {
		refs, err := qb.ReferencesTo(d.SymbolID)
		if err != nil {
			return c.outputError(out, errOut, "references", err)
		}
		locs = append(locs, refs...)
	}
	return c.outputLocations(cmd, "references", locs)
}

func (c *cli) runAt(cmd *cobra.Command, args []string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	s, err := c.openStore()
	if err != nil {
		return c.outputError(out, errOut, "at", err)
	}
	defer s.Close()

	file, line, col, err := parsePosition(args)
	if err != nil {
		return c.outputError(out, errOut, "at", err)
	}
	locs, err := tuindex.NewQueryBuilder(s).DefinitionAt(file, line, col)
	if err != nil {
		return c.outputError(out, errOut, "at", err)
	}
	return c.outputLocations(cmd, "at", locs)
}

func (c *cli) completeCmd() *cobra.Command {
	var (
		prefix   string
		maxItems int
	)
	cmd := &cobra.Command{
		Use:   "complete <file> <line> <col>",
		Short: "Complete the identifier at a position",
		Long:  "Completes from the indexed definitions. Without --prefix the prefix is read from the file.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			s, err := c.openStore()
			if err != nil {
				return c.outputError(out, errOut, "complete", err)
			}
			defer s.Close()

			file, line, col, err := parsePosition(args)
			if err != nil {
				return c.outputError(out, errOut, "complete", err)
			}
			table, err := tableFromIndex(s)
			if err != nil {
				return c.outputError(out, errOut, "complete", err)
			}
			var p *string
			if cmd.Flags().Changed("prefix") {
				p = &prefix
			}
			items, err := complete.New(table).Items(file, line, col, p, maxItems)
			if err != nil {
				return c.outputError(out, errOut, "complete", err)
			}

			results := make([]CLICompletion, len(items))
			for i, it := range items {
				results[i] = CLICompletion{Label: it.Label, Kind: it.Kind, Detail: it.Detail}
			}
			n := len(results)
			return c.outputResult(out, CLIResult{Command: "complete", Results: results, TotalCount: &n})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "completion prefix (default: derived from the file)")
	cmd.Flags().IntVar(&maxItems, "max", 0, "maximum items (default 50)")
	return cmd
}

// tableFromIndex rebuilds a symbol table from indexed definitions.
func tableFromIndex(s *store.Store) (*symtab.Table, error) {
	defs, err := s.AllDefinitions()
	if err != nil {
		return nil, err
	}
	t := symtab.New()
	for _, d := range defs {
		t.Add(ast.NewDefinition(d.Name, ast.Kind(d.Kind), ast.SourceLocation{File: d.File, Line: d.Line, Column: d.Column}))
	}
	return t, nil
}

func (c *cli) symbolsCmd(qf *queryFlags) *cobra.Command {
	var (
		kinds string
		file  string
	)
	cmd := &cobra.Command{
		Use:   "symbols [pattern]",
		Short: "Search definitions by glob pattern",
		Long:  "Pattern uses * as a wildcard and defaults to every definition.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			s, err := c.openStore()
			if err != nil {
				return c.outputError(out, errOut, "symbols", err)
			}
			defer s.Close()

			pattern := "*"
			if len(args) > 0 {
				pattern = args[0]
			}
			filter := tuindex.DefinitionFilter{Kinds: splitList(kinds)}
			if file != "" {
				if filter.File, err = resolveFilePath(file); err != nil {
					return c.outputError(out, errOut, "symbols", err)
				}
			}

			page, err := tuindex.NewQueryBuilder(s).SearchSymbols(pattern, filter, qf.buildSort(),
				tuindex.Pagination{Limit: qf.limit, Offset: qf.offset})
			if err != nil {
				return c.outputError(out, errOut, "symbols", err)
			}
			syms := make([]CLISymbol, len(page.Items))
			for i, d := range page.Items {
				syms[i] = CLISymbol{SymbolID: d.SymbolID, Name: d.Name, Kind: d.Kind, File: d.File, Line: d.Line, Column: d.Column, RefCount: d.RefCount}
			}
			total := page.TotalCount
			return c.outputResult(out, CLIResult{Command: "symbols", Results: syms, TotalCount: &total})
		},
	}
	cmd.Flags().StringVar(&kinds, "kind", "", "comma-separated kind filter (e.g. function,method)")
	cmd.Flags().StringVar(&file, "file", "", "restrict to one file")
	return cmd
}

// buildSort creates a Sort from the query flags.
func (qf *queryFlags) buildSort() tuindex.Sort {
	var field tuindex.SortField
	switch qf.sort {
	case "kind":
		field = tuindex.SortByKind
	case "file":
		field = tuindex.SortByFile
	case "ref_count":
		field = tuindex.SortByRefCount
	default:
		field = tuindex.SortByName
	}
	order := tuindex.Asc
	if qf.order == "desc" {
		order = tuindex.Desc
	}
	return tuindex.Sort{Field: field, Order: order}
}

func (c *cli) runStats(cmd *cobra.Command, args []string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	s, err := c.openStore()
	if err != nil {
		return c.outputError(out, errOut, "stats", err)
	}
	defer s.Close()

	counts, err := tuindex.NewQueryBuilder(s).Counts()
	if err != nil {
		return c.outputError(out, errOut, "stats", err)
	}
	stats := CLIStats{
		Files:       counts.Files,
		Definitions: counts.Definitions,
		References:  counts.References,
		Resolved:    counts.Resolved,
	}
	if v, err := s.GetMetadata(store.MetaLastRebuild); err == nil && v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			stats.LastRebuild = t.Format(time.RFC3339)
		}
	}
	return c.outputResult(out, CLIResult{Command: "stats", Results: stats})
}
