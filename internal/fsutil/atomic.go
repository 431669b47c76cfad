// Package fsutil holds the atomic, durable file writes shared by the
// on-disk stores.
package fsutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

// strict rejects unknown fields so that schema drift on disk is reported
// instead of silently dropped.
var strict = sonic.Config{
	EscapeHTML:            false,
	SortMapKeys:           true,
	ValidateString:        true,
	DisallowUnknownFields: true,
}.Froze()

// MarshalStable encodes v as indented JSON with sorted map keys and a
// trailing newline.
func MarshalStable(v any) ([]byte, error) {
	b, err := strict.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// ReadJSONStrict decodes the single JSON document at path into dst.
// Unknown fields and trailing content are errors. A missing file returns an
// error satisfying errors.Is(err, os.ErrNotExist).
func ReadJSONStrict(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := strict.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

// EnsureDir creates dir and syncs it and its parent.
func EnsureDir(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if err := syncDir(dir); err != nil {
		return err
	}
	if parent := filepath.Dir(dir); parent != dir {
		return syncDir(parent)
	}
	return nil
}

// WriteFileAtomic replaces path with data. The bytes are written to a temp
// file in the same directory, synced, renamed over path, and the directory
// is synced. Readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
