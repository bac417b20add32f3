// Package workspace is the engine's view of the directory it builds in.
//
// All file access goes through a billy.Filesystem rooted at the workspace,
// so the same code runs against the real disk and against an in-memory
// filesystem in tests.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// FingerprintMode selects how file fingerprints are computed.
type FingerprintMode int

const (
	// Content fingerprints are SHA-256 digests of the file contents.
	Content FingerprintMode = iota
	// ModTime fingerprints are modification timestamps.
	ModTime
)

func (m FingerprintMode) String() string {
	if m == ModTime {
		return "mtime"
	}
	return "content"
}

// ParseFingerprintMode parses "content" or "mtime".
func ParseFingerprintMode(s string) (FingerprintMode, error) {
	switch s {
	case "", "content":
		return Content, nil
	case "mtime":
		return ModTime, nil
	default:
		return Content, fmt.Errorf("unknown fingerprint mode %q (want content or mtime)", s)
	}
}

// Workspace wraps the filesystem the build reads and writes.
type Workspace struct {
	fs   billy.Filesystem
	root string
	mode FingerprintMode
}

// New opens the directory root on disk.
func New(root string, mode FingerprintMode) *Workspace {
	return NewWithFS(osfs.New(root), root, mode)
}

// NewWithFS wraps an existing filesystem. root is informational and is used
// as the working directory of external commands.
func NewWithFS(fs billy.Filesystem, root string, mode FingerprintMode) *Workspace {
	return &Workspace{fs: fs, root: root, mode: mode}
}

func (w *Workspace) Root() string { return w.root }

func (w *Workspace) FS() billy.Filesystem { return w.fs }

func (w *Workspace) Mode() FingerprintMode { return w.mode }

func (w *Workspace) Stat(name string) (os.FileInfo, error) { return w.fs.Stat(name) }

// Exists reports whether name is present as a file or directory.
func (w *Workspace) Exists(name string) bool {
	_, err := w.fs.Stat(name)
	return err == nil
}

// ModTime returns the modification time of name.
func (w *Workspace) ModTime(name string) (time.Time, error) {
	fi, err := w.fs.Stat(name)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Fingerprint identifies the current state of name. Files are hashed or
// timestamped according to the workspace mode; directories are fingerprinted
// by their listing so adding or removing an entry changes them.
func (w *Workspace) Fingerprint(name string) (string, error) {
	fi, err := w.fs.Stat(name)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return w.dirFingerprint(name)
	}
	if w.mode == ModTime {
		return "mtime:" + strconv.FormatInt(fi.ModTime().UnixNano(), 10), nil
	}
	f, err := w.fs.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", name, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func (w *Workspace) dirFingerprint(name string) (string, error) {
	entries, err := w.fs.ReadDir(name)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() {
			n += "/"
		}
		names = append(names, n)
	}
	sort.Strings(names)
	h := sha256.New()
	for _, n := range names {
		io.WriteString(h, n)
		h.Write([]byte{0})
	}
	return "dir:" + hex.EncodeToString(h.Sum(nil)), nil
}

// ReadFile returns the contents of name.
func (w *Workspace) ReadFile(name string) ([]byte, error) {
	return util.ReadFile(w.fs, name)
}

// ReadDir returns the sorted entry names of a directory.
func (w *Workspace) ReadDir(name string) ([]string, error) {
	entries, err := w.fs.ReadDir(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Glob returns the sorted names matching pattern.
func (w *Workspace) Glob(pattern string) ([]string, error) {
	matches, err := util.Glob(w.fs, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// WriteAtomic replaces name with data. The data is written to a temporary
// file in the same directory and renamed into place, so readers observe
// either the old or the new contents.
func (w *Workspace) WriteAtomic(name string, data []byte) (err error) {
	dir := path.Dir(name)
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}
	tmp, err := util.TempFile(w.fs, dir, "."+path.Base(name)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = w.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := w.fs.Rename(tmpName, name); err != nil {
		return fmt.Errorf("renaming into %s: %w", name, err)
	}
	return nil
}

// Remove deletes name if it exists.
func (w *Workspace) Remove(name string) error {
	err := w.fs.Remove(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
