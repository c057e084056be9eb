package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name:      "init empty directory",
			args:      []string{},
			wantFiles: []string{"leapquery.yaml", ".gitignore", "sql"},
		},
		{
			name:      "init with example",
			args:      []string{"--example"},
			wantFiles: []string{"leapquery.yaml", "sql/Team.sq"},
		},
		{
			name:      "init into new directory",
			args:      []string{"app"},
			wantFiles: []string{"app/leapquery.yaml", "app/sql"},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapquery.yaml"), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapquery.yaml"), []byte("existing"), 0600)
			},
			args:      []string{"--force"},
			wantFiles: []string{"leapquery.yaml", "sql"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				_, err := os.Stat(filepath.Join(tmpDir, f))
				assert.False(t, os.IsNotExist(err), "expected file/dir %q to exist", f)
			}
		})
	}
}

func TestInitCreatesValidConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile("leapquery.yaml")
	require.NoError(t, err)
	for _, expected := range []string{"source_dirs:", "dialect: sqlite", "state_path:", "dsn: .leapquery/dev.db"} {
		assert.Contains(t, string(content), expected)
	}

	_, err = os.Stat(filepath.Join("sql", ".gitkeep"))
	require.NoError(t, err)
}

func TestListTemplateFilesSkipsPlaceholders(t *testing.T) {
	files, err := listTemplateFiles("minimal")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".gitignore", "leapquery.yaml"}, files)
}
