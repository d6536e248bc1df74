// Package fsutil gathers file system checks and helpers that otherwise need
// several calls to the os and path/filepath packages.
package fsutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNotExist is returned when a path required to exist is missing.
	ErrNotExist = errors.New("fsutil: path does not exist")
	// ErrNotFile is returned when a path exists but is not a regular file.
	ErrNotFile = errors.New("fsutil: path is not a file")
	// ErrNotDir is returned when a path exists but is not a directory.
	ErrNotDir = errors.New("fsutil: path is not a directory")
)

// PathOptions configures the checks done by Path.
type PathOptions struct {
	// Create creates the path as a directory, including parents.
	Create bool
	// Exists requires the path to exist.
	Exists bool
	// IsDir requires the path to be a directory. Implies Exists.
	IsDir bool
	// IsFile requires the path to be a regular file. Implies Exists.
	IsFile bool
	// Message is logged at info level after all checks passed. The
	// placeholders {path} and {path_abbrv} (parent/name) are replaced.
	Message string
}

// Path validates and optionally creates name.
// Checks run before creation, so Create combined with Exists only succeeds
// for directories that are already present.
func Path(name string, opts PathOptions) (string, error) {
	p := filepath.Clean(name)

	if opts.Exists || opts.IsDir || opts.IsFile {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotExist, p)
		}
		if err != nil {
			return "", err
		}
		if opts.IsFile && !info.Mode().IsRegular() {
			return "", fmt.Errorf("%w: %s", ErrNotFile, p)
		}
		if opts.IsDir && !info.IsDir() {
			return "", fmt.Errorf("%w: %s", ErrNotDir, p)
		}
	}

	if opts.Create {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return "", err
		}
	}

	if opts.Message != "" {
		abbrv := filepath.Join(filepath.Base(filepath.Dir(p)), filepath.Base(p))
		msg := strings.NewReplacer("{path}", p, "{path_abbrv}", abbrv).Replace(opts.Message)
		slog.Info(msg)
	}

	return p, nil
}

// Rotate moves current out of the way: foo.tar becomes foo.1.tar, an
// existing foo.1.tar becomes foo.2.tar and so on. If keep is positive, at
// most keep rotated files are retained and older ones are removed. Works for
// files and directories.
func Rotate(current string, keep int) error {
	p, err := Path(current, PathOptions{Exists: true})
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	stem, suffix := split(filepath.Base(p))

	// collect existing generations, highest first
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var gens []int
	prefix := stem + "."
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		mid := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		n, err := strconv.Atoi(mid)
		if err != nil || n < 1 {
			continue
		}
		gens = append(gens, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(gens)))

	generation := func(n int) string {
		return filepath.Join(dir, prefix+strconv.Itoa(n)+suffix)
	}

	for _, n := range gens {
		if keep > 0 && n+1 > keep {
			if err := os.RemoveAll(generation(n)); err != nil {
				return err
			}
			continue
		}
		if err := os.Rename(generation(n), generation(n+1)); err != nil {
			return err
		}
	}
	return os.Rename(p, generation(1))
}

// split separates a file name at its first dot: foo.tar.gz gives foo and
// .tar.gz.
func split(name string) (stem, suffix string) {
	if i := strings.Index(name, "."); i > 0 {
		return name[:i], name[i:]
	}
	return name, ""
}
