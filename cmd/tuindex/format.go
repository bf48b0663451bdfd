package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats locations as "file:line:col" lines, followed
// by the symbol when known.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		if loc.Name == "" {
			fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.Line, loc.Column)
			continue
		}
		fmt.Fprintf(w, "%s:%d:%d\t%s %s\n", loc.File, loc.Line, loc.Column, loc.Kind, loc.Name)
	}
}

// formatSymbolsText formats symbols as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tFILE\tLINE\tCOL\tREFS")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", s.Name, s.Kind, s.File, s.Line, s.Column, s.RefCount)
	}
	tw.Flush()
}

func formatCompletionsText(w io.Writer, items []CLICompletion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tKIND\tDETAIL")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Label, it.Kind, it.Detail)
	}
	tw.Flush()
}

func formatIndexText(w io.Writer, s CLIIndexSummary) {
	fmt.Fprintf(w, "Indexed %s: %d files (%d parsed, %d cached), %d symbols, %d/%d references resolved in %dms\n",
		s.Root, s.Files, s.Parsed, s.Reused, s.Symbols, s.Resolved, s.Resolved+s.Unresolved, s.DurationMS)
	fmt.Fprintf(w, "Database: %s\n", s.Database)
}

func formatStatsText(w io.Writer, s CLIStats) {
	fmt.Fprintf(w, "Files:       %d\n", s.Files)
	fmt.Fprintf(w, "Definitions: %d\n", s.Definitions)
	fmt.Fprintf(w, "References:  %d (%d resolved)\n", s.References, s.Resolved)
	if s.LastRebuild != "" {
		fmt.Fprintf(w, "Rebuilt:     %s\n", s.LastRebuild)
	}
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLICompletion:
		formatCompletionsText(w, v)
	case CLIIndexSummary:
		formatIndexText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		if shown := resultLen(result.Results); shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLILocation:
		return len(r)
	case []CLISymbol:
		return len(r)
	case []CLICompletion:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// outputResult writes result to w in the selected format.
func (c *cli) outputResult(w io.Writer, result CLIResult) error {
	if c.format == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError reports err in the selected format: a JSON envelope on w, or
// a line on errW in text mode.
func (c *cli) outputError(w, errW io.Writer, command string, err error) error {
	if c.format == "text" {
		fmt.Fprintf(errW, "Error: %s\n", err)
		return errHandled{err}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return errHandled{err}
}
