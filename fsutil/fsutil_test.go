package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}

func read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	return string(data)
}

func TestPath_Create(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "..", "c")
	p, err := Path(dir, PathOptions{Create: true})
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(dir), p)

	info, err := os.Stat(p)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	// creating twice is fine
	_, err = Path(dir, PathOptions{Create: true, Exists: true, IsDir: true})
	require.NoError(t, err)
}

func TestPath_Checks(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	touch(t, file, "x")
	missing := filepath.Join(root, "missing")

	tests := []struct {
		name string
		path string
		opts PathOptions
		err  error
	}{
		{"missing ok", missing, PathOptions{}, nil},
		{"missing required", missing, PathOptions{Exists: true}, ErrNotExist},
		{"missing file", missing, PathOptions{IsFile: true}, ErrNotExist},
		{"file is file", file, PathOptions{IsFile: true}, nil},
		{"file is not dir", file, PathOptions{IsDir: true}, ErrNotDir},
		{"dir is not file", root, PathOptions{IsFile: true}, ErrNotFile},
		{"dir is dir", root, PathOptions{IsDir: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Path(tt.path, tt.opts)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}

	_, err := os.Stat(missing)
	require.ErrorIs(t, err, os.ErrNotExist, "checks never create")
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "results.txt")

	for _, content := range []string{"first", "second", "third"} {
		touch(t, current, content)
		require.NoError(t, Rotate(current, 0))
		_, err := os.Stat(current)
		require.ErrorIs(t, err, os.ErrNotExist)
	}

	require.Equal(t, "third", read(t, filepath.Join(dir, "results.1.txt")))
	require.Equal(t, "second", read(t, filepath.Join(dir, "results.2.txt")))
	require.Equal(t, "first", read(t, filepath.Join(dir, "results.3.txt")))
}

func TestRotate_Keep(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "relay.log")

	for _, content := range []string{"1", "2", "3", "4"} {
		touch(t, current, content)
		require.NoError(t, Rotate(current, 2))
	}

	require.Equal(t, "4", read(t, filepath.Join(dir, "relay.1.log")))
	require.Equal(t, "3", read(t, filepath.Join(dir, "relay.2.log")))
	_, err := os.Stat(filepath.Join(dir, "relay.3.log"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRotate_Directory(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "run")
	require.NoError(t, os.Mkdir(current, 0o755))
	touch(t, filepath.Join(current, "data"), "x")

	require.NoError(t, Rotate(current, 0))
	require.Equal(t, "x", read(t, filepath.Join(dir, "run.1", "data")))
}

func TestRotate_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "out.txt")
	touch(t, current, "now")
	touch(t, filepath.Join(dir, "out.old.txt"), "keep me")
	touch(t, filepath.Join(dir, "out.0.txt"), "keep me too")

	require.NoError(t, Rotate(current, 1))
	require.Equal(t, "now", read(t, filepath.Join(dir, "out.1.txt")))
	require.Equal(t, "keep me", read(t, filepath.Join(dir, "out.old.txt")))
	require.Equal(t, "keep me too", read(t, filepath.Join(dir, "out.0.txt")))
}

func TestRotate_Missing(t *testing.T) {
	err := Rotate(filepath.Join(t.TempDir(), "nope.txt"), 0)
	require.ErrorIs(t, err, ErrNotExist)
}

func TestSplit(t *testing.T) {
	cases := map[string][2]string{
		"foo":        {"foo", ""},
		"foo.tar":    {"foo", ".tar"},
		"foo.tar.gz": {"foo", ".tar.gz"},
		".hidden":    {".hidden", ""},
	}
	for in, want := range cases {
		stem, suffix := split(in)
		require.Equal(t, want, [2]string{stem, suffix}, in)
	}
}
