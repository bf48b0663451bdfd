package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// toolCall is the payload of a tool_* message. For types other than
// tool_call_request the tool name defaults to the type suffix, so
// tool_read_file and {"name":"read_file"} are equivalent.
type toolCall struct {
	CallID string          `json:"call_id"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args"`
}

type toolResponse struct {
	CallID          string `json:"call_id,omitempty"`
	Name            string `json:"name"`
	Result          any    `json:"result"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

type toolFunc func(s *Server, args json.RawMessage) (any, error)

var tools = map[string]toolFunc{
	"read_file":  readFileTool,
	"write_file": writeFileTool,
	"list_files": listFilesTool,
	"file_info":  fileInfoTool,
}

// errBadArgs marks a tool failure caused by the arguments rather than by
// the file system.
var errBadArgs = errors.New("invalid arguments")

func (s *Server) handleTool(c *conn, m *Message) *Message {
	var call toolCall
	if err := decodeData(m, &call); err != nil {
		return errorReply(m, c.session, CodeInvalidArguments, err.Error())
	}
	if call.Name == "" && m.Type != "tool_call_request" {
		call.Name = strings.TrimPrefix(m.Type, "tool_")
	}

	fn, ok := tools[call.Name]
	if !ok {
		return reply(m, TypeError, c.session, ErrorData{Code: CodeUnknownTool, Message: fmt.Sprintf("unknown tool %q", call.Name), CallID: call.CallID})
	}

	start := time.Now()
	result, err := fn(s, call.Args)
	if err != nil {
		s.logger.Debug("server.tool_failed", "tool", call.Name, "error", err)
		code := CodeToolError
		if errors.Is(err, errBadArgs) {
			code = CodeInvalidArguments
		}
		return reply(m, TypeError, c.session, ErrorData{Code: code, Message: err.Error(), CallID: call.CallID})
	}
	return reply(m, TypeToolResponse, c.session, toolResponse{
		CallID:          call.CallID,
		Name:            call.Name,
		Result:          result,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
	})
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errBadArgs, err)
	}
	return nil
}

type pathArgs struct {
	FilePath string `json:"file_path"`
}

func (a pathArgs) require() error {
	if a.FilePath == "" {
		return fmt.Errorf("%w: file_path is required", errBadArgs)
	}
	return nil
}

type readFileResult struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
	Size     int    `json:"size"`
}

func readFileTool(s *Server, raw json.RawMessage) (any, error) {
	var args pathArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.require(); err != nil {
		return nil, err
	}
	path := s.abs(args.FilePath)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read_file: %w", err)
	}
	return readFileResult{FilePath: path, Content: string(content), Size: len(content)}, nil
}

type writeFileArgs struct {
	pathArgs
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

type writeFileResult struct {
	Success      bool   `json:"success"`
	FilePath     string `json:"file_path"`
	BytesWritten int    `json:"bytes_written"`
}

func writeFileTool(s *Server, raw json.RawMessage) (any, error) {
	var args writeFileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.require(); err != nil {
		return nil, err
	}
	path := s.abs(args.FilePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("write_file: %w", err)
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if args.Append {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("write_file: %w", err)
	}
	n, err := f.WriteString(args.Content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write_file: %w", err)
	}
	return writeFileResult{Success: true, FilePath: path, BytesWritten: n}, nil
}

type listFilesArgs struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

type listFilesResult struct {
	Path  string   `json:"path"`
	Files []string `json:"files"`
}

// listFilesTool globs under path with doublestar syntax; the default
// pattern lists every file recursively.
func listFilesTool(s *Server, raw json.RawMessage) (any, error) {
	var args listFilesArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Pattern == "" {
		args.Pattern = "**/*"
	}
	if !doublestar.ValidatePattern(args.Pattern) {
		return nil, fmt.Errorf("%w: bad pattern %q", errBadArgs, args.Pattern)
	}

	dir := s.root
	if args.Path != "" {
		dir = s.abs(args.Path)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("list_files: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list_files: %s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), args.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list_files: %w", err)
	}
	if matches == nil {
		matches = []string{}
	}
	return listFilesResult{Path: dir, Files: matches}, nil
}

type fileInfoResult struct {
	FilePath string `json:"file_path"`
	Size     int64  `json:"size"`
	Mode     string `json:"mode"`
	ModTime  string `json:"mod_time"`
	IsDir    bool   `json:"is_dir"`
}

func fileInfoTool(s *Server, raw json.RawMessage) (any, error) {
	var args pathArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.require(); err != nil {
		return nil, err
	}
	path := s.abs(args.FilePath)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file_info: %w", err)
	}
	return fileInfoResult{
		FilePath: path,
		Size:     info.Size(),
		Mode:     info.Mode().String(),
		ModTime:  info.ModTime().UTC().Format(time.RFC3339),
		IsDir:    info.IsDir(),
	}, nil
}
