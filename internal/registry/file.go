package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"segweaver/internal/cluster"
	"segweaver/internal/fsutil"
)

// document is the on-disk form of a saved model.
type document struct {
	Name    string         `json:"name"`
	SavedAt time.Time      `json:"saved_at"`
	Model   *cluster.Model `json:"model"`
}

// FileRegistry keeps one JSON document per model under Dir:
//
//	{Dir}/{name}.json
//
// Writes are atomic and durable.
type FileRegistry struct {
	Dir string
	now func() time.Time
}

func NewFileRegistry(dir string) *FileRegistry {
	return &FileRegistry{Dir: dir, now: time.Now}
}

func (r *FileRegistry) path(name string) string {
	return filepath.Join(r.Dir, name+".json")
}

func (r *FileRegistry) Save(_ context.Context, model *cluster.Model, name string) error {
	const op = "registry save"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := checkModel(op, model); err != nil {
		return err
	}
	if err := fsutil.EnsureDir(r.Dir, 0o755); err != nil {
		return fmt.Errorf("ensure registry dir: %w", err)
	}
	data, err := fsutil.MarshalStable(document{Name: name, SavedAt: r.now().UTC(), Model: model})
	if err != nil {
		return fmt.Errorf("marshal model %s: %w", name, err)
	}
	if err := fsutil.WriteFileAtomic(r.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write model %s: %w", name, err)
	}
	return nil
}

func (r *FileRegistry) Load(_ context.Context, name string) (*cluster.Model, error) {
	const op = "registry load"
	if err := checkName(op, name); err != nil {
		return nil, err
	}
	var doc document
	if err := fsutil.ReadJSONStrict(r.path(name), &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(op, name)
		}
		return nil, fmt.Errorf("read model %s: %w", name, err)
	}
	if doc.Name != name {
		return nil, fmt.Errorf("read model %s: document names %q", name, doc.Name)
	}
	if err := checkModel(op, doc.Model); err != nil {
		return nil, fmt.Errorf("invalid model on disk: %w", err)
	}
	return doc.Model, nil
}

func (r *FileRegistry) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok || !validName.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
