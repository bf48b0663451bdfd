package server

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/jward/tuindex"
	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/complete"
)

// handle decodes one line and routes it. Protocol failures become error
// replies; nothing here closes the connection.
func (s *Server) handle(c *conn, line []byte) *Message {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return errorReply(nil, "", CodeInvalidJSON, err.Error())
	}
	if m.Type == "" {
		return errorReply(&m, "", CodeMissingType, "message has no type")
	}

	if m.Type == TypeSessionStart {
		return s.startSession(c, &m)
	}
	if m.SessionID == "" {
		return errorReply(&m, "", CodeMissingSessionID, fmt.Sprintf("%s requires session_id", m.Type))
	}
	if c.ended || m.SessionID != c.session {
		return errorReply(&m, "", CodeInvalidSession, fmt.Sprintf("unknown session %q", m.SessionID))
	}

	switch classify(m.Type) {
	case classSession:
		c.ended = true
		return reply(&m, TypeSessionEnded, c.session, map[string]string{"session_id": c.session})
	case classTool:
		return s.handleTool(c, &m)
	case classQuery:
		return s.handleQuery(c, &m)
	case classPassthrough:
		return reply(&m, TypeAck, c.session, map[string]string{"acked": m.Type})
	default:
		return errorReply(&m, c.session, CodeUnknownMessageType, fmt.Sprintf("unknown message type %q", m.Type))
	}
}

// startSession answers session_start with the connection's session id. A
// connection whose session ended gets a fresh one.
func (s *Server) startSession(c *conn, m *Message) *Message {
	if c.ended {
		c.session = s.mintSession(c.addr)
		c.ended = false
	}
	s.logger.Debug("server.session_started", "session", c.session)
	return reply(m, TypeSessionStarted, c.session, map[string]string{"session_id": c.session})
}

type position struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type reloadRequest struct {
	Files []string `json:"files"`
	Flags []string `json:"flags"`
}

type reloadResponse struct {
	Files      int   `json:"files"`
	Parsed     int   `json:"parsed"`
	Reused     int   `json:"reused"`
	Resolved   int   `json:"resolved"`
	Unresolved int   `json:"unresolved"`
	Symbols    int   `json:"symbols"`
	DurationMS int64 `json:"duration_ms"`
}

type lookupRequest struct {
	position
	Name string `json:"name"`
}

type locationsResponse struct {
	Locations   []tuindex.Location `json:"locations"`
	Suggestions []string           `json:"suggestions,omitempty"`
}

type completionRequest struct {
	position
	Prefix     *string `json:"prefix"`
	MaxResults int     `json:"max_results"`
}

type completionResponse struct {
	Items []complete.Item `json:"items"`
}

type symbolsRequest struct {
	Pattern string   `json:"pattern"`
	Kinds   []string `json:"kinds"`
	File    string   `json:"file"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

type symbolResult struct {
	tuindex.Location
	RefCount int `json:"ref_count"`
}

type symbolsResponse struct {
	Items []symbolResult `json:"items"`
	Total int            `json:"total"`
}

func (s *Server) handleQuery(c *conn, m *Message) *Message {
	var (
		data any
		err  error
		bad  error
	)
	switch m.Type {
	case TypeQueryReload:
		var req reloadRequest
		if bad = decodeData(m, &req); bad == nil {
			data, err = s.reload(req)
		}
	case TypeQueryDefinition:
		var req lookupRequest
		if bad = decodeData(m, &req); bad == nil {
			if bad = s.checkLookup(&req); bad == nil {
				data, err = s.definition(req)
			}
		}
	case TypeQueryReferences:
		var req lookupRequest
		if bad = decodeData(m, &req); bad == nil {
			if bad = s.checkLookup(&req); bad == nil {
				data, err = s.references(req)
			}
		}
	case TypeQueryCompletion:
		var req completionRequest
		if bad = decodeData(m, &req); bad == nil {
			if bad = s.checkPosition(&req.position); bad == nil {
				data, err = s.completion(req)
			}
		}
	case TypeQuerySymbols:
		var req symbolsRequest
		if bad = decodeData(m, &req); bad == nil {
			data, err = s.symbols(req)
		}
	default:
		return errorReply(m, c.session, CodeUnknownMessageType, fmt.Sprintf("unknown query %q", m.Type))
	}

	if bad != nil {
		return errorReply(m, c.session, CodeInvalidArguments, bad.Error())
	}
	if err != nil {
		s.logger.Warn("server.query_failed", "type", m.Type, "error", err)
		return errorReply(m, c.session, CodeQueryError, err.Error())
	}
	return reply(m, TypeQueryResponse, c.session, data)
}

func (s *Server) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.root, p)
}

func (s *Server) checkPosition(p *position) error {
	if p.File == "" {
		return fmt.Errorf("file is required")
	}
	if p.Line < 1 || p.Column < 1 {
		return fmt.Errorf("line and column must be positive, got %d:%d", p.Line, p.Column)
	}
	p.File = s.abs(p.File)
	return nil
}

// checkLookup accepts either a name or a full position.
func (s *Server) checkLookup(req *lookupRequest) error {
	if req.Name != "" && req.File == "" {
		return nil
	}
	return s.checkPosition(&req.position)
}

func (s *Server) reload(req reloadRequest) (*reloadResponse, error) {
	var (
		res *tuindex.ReloadResult
		err error
	)
	if len(req.Files) == 0 {
		res, err = s.index.Refresh(s.ctx)
	} else {
		files := make([]string, len(req.Files))
		for i, f := range req.Files {
			files[i] = s.abs(f)
		}
		res, err = s.index.Reload(s.ctx, files, req.Flags)
	}
	if err != nil {
		return nil, err
	}
	if s.watcher != nil {
		s.watcher.update(s.index.Files())
	}
	return &reloadResponse{
		Files:      res.Files,
		Parsed:     res.Parsed,
		Reused:     res.Reused,
		Resolved:   res.Resolved,
		Unresolved: res.Unresolved,
		Symbols:    res.Symbols,
		DurationMS: res.Duration.Milliseconds(),
	}, nil
}

// definition resolves a position through the loaded documents and falls
// back to the persisted index. A name lookup that finds nothing carries
// fuzzy suggestions.
func (s *Server) definition(req lookupRequest) (*locationsResponse, error) {
	resp := &locationsResponse{Locations: []tuindex.Location{}}
	if req.File == "" {
		locs, err := s.index.Query().DefinitionsByName(req.Name)
		if err != nil {
			return nil, err
		}
		resp.Locations = append(resp.Locations, locs...)
		if len(locs) == 0 {
			for _, sg := range s.index.Suggest(req.Name, 5) {
				resp.Suggestions = append(resp.Suggestions, sg.Label)
			}
		}
		return resp, nil
	}

	if loc, ok := s.index.Definition(req.File, req.Line, req.Column); ok {
		resp.Locations = append(resp.Locations, locationOf(loc))
		return resp, nil
	}
	locs, err := s.index.Query().DefinitionAt(req.File, req.Line, req.Column)
	if err != nil {
		return nil, err
	}
	resp.Locations = append(resp.Locations, locs...)
	return resp, nil
}

func (s *Server) references(req lookupRequest) (*locationsResponse, error) {
	resp := &locationsResponse{Locations: []tuindex.Location{}}
	if req.File == "" {
		locs, err := s.index.Query().ReferencesByName(req.Name)
		if err != nil {
			return nil, err
		}
		resp.Locations = append(resp.Locations, locs...)
		return resp, nil
	}

	if locs := s.index.References(req.File, req.Line, req.Column); len(locs) > 0 {
		for _, l := range locs {
			resp.Locations = append(resp.Locations, locationOf(l))
		}
		return resp, nil
	}

	defs, err := s.index.Query().DefinitionAt(req.File, req.Line, req.Column)
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		resp.Locations = append(resp.Locations, d)
		refs, err := s.index.Query().ReferencesTo(d.SymbolID)
		if err != nil {
			return nil, err
		}
		resp.Locations = append(resp.Locations, refs...)
	}
	return resp, nil
}

func (s *Server) completion(req completionRequest) (*completionResponse, error) {
	items, err := s.index.Complete(req.File, req.Line, req.Column, req.Prefix, req.MaxResults)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []complete.Item{}
	}
	return &completionResponse{Items: items}, nil
}

func (s *Server) symbols(req symbolsRequest) (*symbolsResponse, error) {
	filter := tuindex.DefinitionFilter{Kinds: req.Kinds}
	if req.File != "" {
		filter.File = s.abs(req.File)
	}
	page, err := s.index.Query().SearchSymbols(req.Pattern, filter,
		tuindex.Sort{Field: tuindex.SortByName, Order: tuindex.Asc},
		tuindex.Pagination{Offset: req.Offset, Limit: req.Limit})
	if err != nil {
		return nil, err
	}
	resp := &symbolsResponse{Items: []symbolResult{}, Total: page.TotalCount}
	for _, d := range page.Items {
		resp.Items = append(resp.Items, symbolResult{
			Location: tuindex.Location{File: d.File, Line: d.Line, Column: d.Column, Name: d.Name, Kind: d.Kind, SymbolID: d.SymbolID},
			RefCount: d.RefCount,
		})
	}
	return resp, nil
}

func locationOf(l ast.SourceLocation) tuindex.Location {
	return tuindex.Location{File: l.File, Line: l.Line, Column: l.Column}
}
