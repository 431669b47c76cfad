// Package registry persists fitted cluster models by name.
package registry

import (
	"context"
	"regexp"

	"segweaver/internal/cluster"
	"segweaver/internal/core"
)

// Registry stores one model per name. Save overwrites; Load of an unknown
// name fails with core.ErrNotFound.
type Registry interface {
	Save(ctx context.Context, model *cluster.Model, name string) error
	Load(ctx context.Context, name string) (*cluster.Model, error)
	// List returns every saved name in ascending order.
	List(ctx context.Context) ([]string, error)
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func checkName(op, name string) error {
	if !validName.MatchString(name) {
		return core.Errorf(core.ErrInvalidParameter, op, "model name %q must match %s", name, validName)
	}
	return nil
}

func checkModel(op string, m *cluster.Model) error {
	if m == nil {
		return core.Errorf(core.ErrInvalidParameter, op, "nil model")
	}
	if err := m.Algorithm.Validate(); err != nil {
		return err
	}
	if m.K < 1 || len(m.Centroids) != m.K {
		return core.Errorf(core.ErrShapeMismatch, op, "k=%d with %d centroids", m.K, len(m.Centroids))
	}
	return nil
}

func notFound(op, name string) error {
	return core.Errorf(core.ErrNotFound, op, "no model named %q", name)
}
