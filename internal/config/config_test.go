package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "9.01", cfg.IgorVersion)
	assert.Equal(t, map[string]string{"*.ipf": "igorpro"}, cfg.Associations)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.Suppressed(SuppressHoverContents))
	assert.Empty(t, cfg.File)
}

const workspaceYAML = `igorVersion: "8.04"
suggest:
  symbolFile: ${workspaceFolder}/refs.yaml
  suppressMessages:
    hover.contents: true
files:
  associations:
    "*.txt": igorpro
    "vendor/**": plaintext
log:
  level: debug
`

func TestLoad_WorkspaceFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".ipfls.yaml"), []byte(workspaceYAML), 0o644))

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, "8.04", cfg.IgorVersion)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Suppressed(SuppressHoverContents))
	assert.False(t, cfg.Suppressed(SuppressCompletionDocumentation))
	assert.Equal(t, map[string]string{
		"*.ipf":     "igorpro",
		"*.txt":     "igorpro",
		"vendor/**": "plaintext",
	}, cfg.Associations)
	assert.Equal(t, ".ipfls.yaml", filepath.Base(cfg.File))
	assert.Equal(t, filepath.Join(root, "refs.yaml"), cfg.SymbolFilePath(root, ""))
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "9.01", cfg.IgorVersion)

	_, err = Load("", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("IPFLS_IGORVERSION", "6.37")

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "6.37", cfg.IgorVersion)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base := Default()
	merged, err := base.Merge(map[string]any{
		"igorVersion": "7.00",
		"suggest": map[string]any{
			"suppressMessages": map[string]any{SuppressCompletionDocumentation: true},
		},
		"files": map[string]any{
			"associations": map[string]any{"*.proc": "igorpro"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "7.00", merged.IgorVersion)
	assert.True(t, merged.Suppressed(SuppressCompletionDocumentation))
	assert.Equal(t, "igorpro", merged.Associations["*.proc"])
	assert.Equal(t, "igorpro", merged.Associations["*.ipf"])
	assert.False(t, merged.SameAssociations(base))

	assert.Equal(t, "9.01", base.IgorVersion)
	assert.False(t, base.Suppressed(SuppressCompletionDocumentation))

	again, err := merged.Merge(map[string]any{"log": map[string]any{"level": "warn"}})
	require.NoError(t, err)
	assert.Equal(t, "7.00", again.IgorVersion)
	assert.Equal(t, "warn", again.LogLevel)
	assert.True(t, again.SameAssociations(merged))
}

func TestSuppressed_IgnoresCase(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.SuppressMessages[SuppressCompletionDetail] = true
	assert.True(t, cfg.Suppressed(SuppressCompletionDetail))
	assert.True(t, cfg.Suppressed("completionitem.label.detail"))
	assert.False(t, cfg.Suppressed(SuppressCompletionDescription))

	merged, err := Default().Merge(map[string]any{
		"suggest": map[string]any{
			"suppressMessages": map[string]any{SuppressCompletionDescription: true},
		},
	})
	require.NoError(t, err)
	assert.True(t, merged.Suppressed(SuppressCompletionDescription))
}

func TestMerge_InvalidSwitch(t *testing.T) {
	t.Parallel()

	_, err := Default().Merge(map[string]any{
		"suggest": map[string]any{
			"suppressMessages": map[string]any{SuppressHoverContents: "maybe"},
		},
	})
	assert.Error(t, err)
}

func TestSymbolFilePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, file, folder, home, want string
	}{
		{"unset", "", "/ws", "/home/u", ""},
		{"absolute", "/refs/igor.yaml", "/ws", "/home/u", "/refs/igor.yaml"},
		{"workspace", "${workspaceFolder}/refs.yaml", "/ws", "", filepath.Join("/ws", "refs.yaml")},
		{"workspace missing", "${workspaceFolder}/refs.yaml", "", "", ""},
		{"home", "${userHome}/igor/refs.json", "", "/home/u", filepath.Join("/home/u", "igor/refs.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{SymbolFile: tt.file}
			assert.Equal(t, tt.want, cfg.SymbolFilePath(tt.folder, tt.home))
		})
	}
}
