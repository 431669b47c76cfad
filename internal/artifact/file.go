package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"segweaver/internal/core"
	"segweaver/internal/fsutil"
	"segweaver/internal/table"
)

// metadata is the on-disk description of an entry. The payload lives beside
// it so that a truncated payload is detectable through its digest.
type metadata struct {
	Key    core.Fingerprint `json:"key"`
	Node   string           `json:"node"`
	Digest string           `json:"digest"`
}

// FileStore implements Store on the local filesystem.
//
// Structure:
//
//	{Dir}/
//	  {key[0:2]}/
//	    {key}/
//	      metadata.json  (key, node, payload digest)
//	      frame.json     (canonical Frame encoding)
//
// Entries are committed by renaming a fully written temp directory into
// place, so readers never observe a partial entry.
type FileStore struct {
	Dir string
}

// NewFileStore creates a filesystem store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) Has(_ context.Context, key core.Fingerprint) (bool, error) {
	_, err := os.Stat(filepath.Join(s.entryPath(key), "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking cache entry: %w", err)
	}
	return true, nil
}

func (s *FileStore) Get(_ context.Context, key core.Fingerprint) (*Entry, error) {
	entryDir := s.entryPath(key)

	metaBytes, err := os.ReadFile(filepath.Join(entryDir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache metadata: %w", err)
	}
	var meta metadata
	if err := sonic.ConfigStd.Unmarshal(metaBytes, &meta); err != nil {
		return nil, corrupt(key, "parsing metadata: %v", err)
	}
	if meta.Key != key {
		return nil, corrupt(key, "metadata names key %s", meta.Key.Short())
	}

	payload, err := os.ReadFile(filepath.Join(entryDir, "frame.json"))
	if err != nil {
		return nil, corrupt(key, "reading payload: %v", err)
	}
	if got := core.Digest(payload); got != meta.Digest {
		return nil, corrupt(key, "payload digest %s does not match %s", got[:12], meta.Digest)
	}
	frame, err := table.Decode(payload)
	if err != nil {
		return nil, corrupt(key, "%v", err)
	}
	return &Entry{Key: key, Node: meta.Node, Frame: frame}, nil
}

func (s *FileStore) Put(_ context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	payload, err := table.Encode(entry.Frame)
	if err != nil {
		return fmt.Errorf("encoding payload for %s: %w", entry.Node, err)
	}
	metaBytes, err := sonic.ConfigStd.MarshalIndent(metadata{
		Key:    entry.Key,
		Node:   entry.Node,
		Digest: core.Digest(payload),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache metadata: %w", err)
	}

	entryDir := s.entryPath(entry.Key)
	parentDir := filepath.Dir(entryDir)

	// Ensure parent exists so the temp dir is created on the same filesystem.
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parentDir, "tmp-entry-"+entry.Key.Short()+"-")
	if err != nil {
		return fmt.Errorf("creating temp cache entry dir: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = os.RemoveAll(tmpDir)
	}()

	// Payload first, so metadata only appears after the payload succeeded.
	if err := fsutil.WriteFileAtomic(filepath.Join(tmpDir, "frame.json"), payload, 0o644); err != nil {
		return fmt.Errorf("writing cache payload: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(tmpDir, "metadata.json"), metaBytes, 0o644); err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}

	// A crash between remove and rename yields a cache miss, not corruption.
	_ = os.RemoveAll(entryDir)
	if err := os.Rename(tmpDir, entryDir); err != nil {
		return fmt.Errorf("committing cache entry: %w", err)
	}
	committed = true
	return nil
}

// entryPath returns the directory of the entry for key.
// The first two characters of the key form a fan-out directory.
func (s *FileStore) entryPath(key core.Fingerprint) string {
	k := string(key)
	if len(k) < 2 {
		return filepath.Join(s.Dir, k)
	}
	return filepath.Join(s.Dir, k[:2], k)
}
