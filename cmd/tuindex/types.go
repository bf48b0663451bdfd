package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a symbol occurrence. Lines and columns are 1-based.
type CLILocation struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	SymbolID string `json:"symbol_id,omitempty"`
}

// CLISymbol is a definition with its resolved reference count.
type CLISymbol struct {
	SymbolID string `json:"symbol_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	RefCount int    `json:"ref_count"`
}

// CLICompletion is one completion candidate.
type CLICompletion struct {
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// CLIIndexSummary reports what an index run did.
type CLIIndexSummary struct {
	Root       string `json:"root"`
	Database   string `json:"database"`
	Files      int    `json:"files"`
	Parsed     int    `json:"parsed"`
	Reused     int    `json:"reused"`
	Resolved   int    `json:"resolved"`
	Unresolved int    `json:"unresolved"`
	Symbols    int    `json:"symbols"`
	DurationMS int64  `json:"duration_ms"`
}

// CLIStats summarizes the index contents.
type CLIStats struct {
	Files       int    `json:"files"`
	Definitions int    `json:"definitions"`
	References  int    `json:"references"`
	Resolved    int    `json:"resolved"`
	LastRebuild string `json:"last_rebuild,omitempty"`
}
