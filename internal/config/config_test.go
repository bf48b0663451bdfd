package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cfg := Default(root)

	assert.Equal(t, root, cfg.Project.Root)
	assert.Equal(t, filepath.Join(root, ".tuindex", "cache"), cfg.CacheDir())
	assert.Equal(t, filepath.Join(root, ".tuindex", "index.db"), cfg.IndexPath())
	assert.Empty(t, cfg.ScriptsDir())
	assert.True(t, cfg.Index.RespectGitignore)
	assert.Greater(t, cfg.Build.Workers, 0)
	assert.Equal(t, 50, cfg.Completion.MaxResults)
	assert.Contains(t, cfg.Exclude, "**/.tuindex/**")
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, Default(root), cfg)
}

func TestParse_AllSections(t *testing.T) {
	t.Parallel()
	content := `
project {
    name "demo"
}
cache {
    dir "/var/cache/tuindex"
    compress true
}
index {
    path "idx.db"
    respect_gitignore false
    max_file_size "2MB"
}
build {
    workers 3
    flags "-DDEBUG" "-Iinclude"
    scripts_dir "scripts"
}
server {
    network "unix"
    addr "/tmp/tuindex.sock"
    idle_timeout "90s"
    watch true
    watch_debounce 50
}
completion {
    max_results 10
    min_similarity 0.8
}
include "src/**/*.go" "lib/**"
exclude {
    "**/testdata/**"
}
`
	root := t.TempDir()
	cfg, err := Parse(root, content)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, "/var/cache/tuindex", cfg.CacheDir())
	assert.True(t, cfg.Cache.Compress)
	assert.Equal(t, filepath.Join(root, "idx.db"), cfg.IndexPath())
	assert.False(t, cfg.Index.RespectGitignore)
	assert.EqualValues(t, 2*1024*1024, cfg.Index.MaxFileSize)
	assert.Equal(t, 3, cfg.Build.Workers)
	assert.Equal(t, []string{"-DDEBUG", "-Iinclude"}, cfg.Build.Flags)
	assert.Equal(t, filepath.Join(root, "scripts"), cfg.ScriptsDir())
	assert.Equal(t, "unix", cfg.Server.Network)
	assert.Equal(t, "/tmp/tuindex.sock", cfg.Server.Addr)
	assert.Equal(t, 90*time.Second, cfg.Server.IdleTimeout)
	assert.True(t, cfg.Server.Watch)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.WatchDebounce)
	assert.Equal(t, 10, cfg.Completion.MaxResults)
	assert.InDelta(t, 0.8, cfg.Completion.MinSimilarity, 1e-9)
	assert.Equal(t, []string{"src/**/*.go", "lib/**"}, cfg.Include)
	assert.Equal(t, []string{"**/testdata/**"}, cfg.Exclude)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cfg, err := Parse(root, "build {\n    workers 2\n}\n")
	require.NoError(t, err)

	want := Default(root)
	want.Build.Workers = 2
	assert.Equal(t, want, cfg)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	_, err := Parse(root, "build {")
	require.Error(t, err)

	_, err = Parse(root, "server {\n    idle_timeout \"soon\"\n}\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle_timeout")

	_, err = Parse(root, "index {\n    max_file_size \"lots\"\n}\n")
	require.Error(t, err)
}

func TestLoad_ReadsProjectFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("project {\n    root \"src\"\n}\ncache {\n    compress true\n}\n"), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src"), cfg.Project.Root)
	assert.True(t, cfg.Cache.Compress)
}

func TestParseSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want int64
	}{
		{"10", 10},
		{"10B", 10},
		{"3KB", 3 * 1024},
		{"1mb", 1024 * 1024},
		{"2GB", 2 * 1024 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDiscoverOptions(t *testing.T) {
	t.Parallel()
	cfg, err := Parse(t.TempDir(), `
index {
    respect_gitignore false
    max_file_size "1KB"
}
include "src/**"
`)
	require.NoError(t, err)

	opts := cfg.DiscoverOptions()
	assert.Equal(t, []string{"src/**"}, opts.Include)
	assert.Equal(t, cfg.Exclude, opts.Exclude)
	assert.False(t, opts.RespectGitignore)
	assert.Equal(t, int64(1024), opts.MaxFileSize)
	assert.Nil(t, opts.Supports)
}
