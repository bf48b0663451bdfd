package server

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolReply[T any] struct {
	CallID          string `json:"call_id"`
	Name            string `json:"name"`
	Result          T      `json:"result"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

func toolRequest(name, callID string, args any) map[string]any {
	return map[string]any{"call_id": callID, "name": name, "args": args}
}

func TestTools_WriteReadInfo(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	sid := c.start()

	m := c.call("tool_call_request", sid, "t1", toolRequest("write_file", "w1", map[string]any{
		"file_path": "notes/todo.txt",
		"content":   "first\n",
	}))
	require.Equal(t, TypeToolResponse, m.Type, string(m.Data))
	assert.Equal(t, "t1", m.CorrelationID)
	w := decode[toolReply[writeFileResult]](t, m)
	assert.Equal(t, "w1", w.CallID)
	assert.Equal(t, "write_file", w.Name)
	assert.True(t, w.Result.Success)
	assert.Equal(t, 6, w.Result.BytesWritten)
	assert.Equal(t, filepath.Join(f.dir, "notes", "todo.txt"), w.Result.FilePath)

	m = c.call("tool_call_request", sid, "t2", toolRequest("write_file", "w2", map[string]any{
		"file_path": "notes/todo.txt",
		"content":   "second\n",
		"append":    true,
	}))
	require.Equal(t, TypeToolResponse, m.Type, string(m.Data))

	m = c.call("tool_read_file", sid, "t3", map[string]any{"args": map[string]any{"file_path": "notes/todo.txt"}})
	require.Equal(t, TypeToolResponse, m.Type, string(m.Data))
	r := decode[toolReply[readFileResult]](t, m)
	assert.Equal(t, "read_file", r.Name)
	assert.Equal(t, "first\nsecond\n", r.Result.Content)
	assert.Equal(t, 13, r.Result.Size)

	m = c.call("tool_call_request", sid, "t4", toolRequest("file_info", "", map[string]any{"file_path": "notes"}))
	require.Equal(t, TypeToolResponse, m.Type, string(m.Data))
	info := decode[toolReply[fileInfoResult]](t, m)
	assert.True(t, info.Result.IsDir)
	assert.NotEmpty(t, info.Result.ModTime)
}

func TestTools_ListFiles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "src", "pkg"), 0o755))
	f.write(t, "src/main.go", "package main")
	f.write(t, "src/pkg/util.go", "package pkg")
	f.write(t, "src/README.md", "readme")
	c := f.dial(t)
	sid := c.start()

	m := c.call("tool_call_request", sid, "", toolRequest("list_files", "l1", map[string]any{"path": "src", "pattern": "**/*.go"}))
	require.Equal(t, TypeToolResponse, m.Type, string(m.Data))
	list := decode[toolReply[listFilesResult]](t, m)
	sort.Strings(list.Result.Files)
	assert.Equal(t, []string{"main.go", "pkg/util.go"}, list.Result.Files)

	m = c.call("tool_list_files", sid, "", map[string]any{"args": map[string]any{"path": "src"}})
	list = decode[toolReply[listFilesResult]](t, m)
	assert.Len(t, list.Result.Files, 3)

	m = c.call("tool_list_files", sid, "", map[string]any{"args": map[string]any{"path": "src", "pattern": "*.rs"}})
	files := decode[toolReply[listFilesResult]](t, m).Result.Files
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestTools_Errors(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	sid := c.start()

	e := requireError(t, c.call("tool_call_request", sid, "", toolRequest("read_file", "r1", map[string]any{"file_path": "nope.txt"})), CodeToolError)
	assert.Equal(t, "r1", e.CallID)
	assert.Contains(t, e.Message, "nope.txt")

	requireError(t, c.call("tool_call_request", sid, "", toolRequest("read_file", "", map[string]any{})), CodeInvalidArguments)
	requireError(t, c.call("tool_call_request", sid, "", toolRequest("list_files", "", map[string]any{"pattern": "[bad"})), CodeInvalidArguments)
	requireError(t, c.call("tool_call_request", sid, "", toolRequest("list_files", "", map[string]any{"path": "missing"})), CodeToolError)

	e = requireError(t, c.call("tool_call_request", sid, "", toolRequest("rm_rf", "x", nil)), CodeUnknownTool)
	assert.Equal(t, "x", e.CallID)
	requireError(t, c.call("tool_teleport", sid, "", nil), CodeUnknownTool)

	// One failing tool does not affect the next.
	f.write(t, "ok.txt", "fine")
	m := c.call("tool_read_file", sid, "", map[string]any{"args": map[string]any{"file_path": "ok.txt"}})
	assert.Equal(t, TypeToolResponse, m.Type)
}
