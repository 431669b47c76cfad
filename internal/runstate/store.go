package runstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"segweaver/internal/core"
	"segweaver/internal/fsutil"
)

// Store persists run records under:
//
//	<dir>/runs/<run-id>/run.json
//	<dir>/runs/<run-id>/failure.json
//
// All writes are atomic and durable.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state dir is required")
	}
	return &Store{dir: dir, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) runsDir() string              { return filepath.Join(s.dir, "runs") }
func (s *Store) runDir(id string) string      { return filepath.Join(s.runsDir(), id) }
func (s *Store) runPath(id string) string     { return filepath.Join(s.runDir(id), "run.json") }
func (s *Store) failurePath(id string) string { return filepath.Join(s.runDir(id), "failure.json") }

// StartRun records run as running. An empty RunID is filled with a new UUID
// and a zero StartTime with the current time. It returns the stored record.
func (s *Store) StartRun(run Run) (Run, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.StartTime.IsZero() {
		run.StartTime = s.now()
	}
	if run.Params == nil {
		run.Params = map[string]string{}
	}
	run.Status = RunRunning
	run.EndTime = nil
	if err := s.saveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// FinishRun moves a running run to status and stamps its end time.
func (s *Store) FinishRun(runID string, status RunStatus) (Run, error) {
	if status != RunSucceeded && status != RunFailed {
		return Run{}, fmt.Errorf("cannot finish run with status %q", status)
	}
	run, err := s.LoadRun(runID)
	if err != nil {
		return Run{}, err
	}
	if run.Status != RunRunning {
		return Run{}, fmt.Errorf("run %s already finished with status %q", runID, run.Status)
	}
	end := s.now()
	if end.Before(run.StartTime) {
		end = run.StartTime
	}
	run.Status, run.EndTime = status, &end
	if err := s.saveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// SetGraphHash records the hash of the graph the run executes.
func (s *Store) SetGraphHash(runID, graphHash string) error {
	run, err := s.LoadRun(runID)
	if err != nil {
		return err
	}
	run.GraphHash = graphHash
	return s.saveRun(run)
}

// RecordFailure classifies err, writes failure.json and finishes the run as
// failed. It returns the recorded Failure.
func (s *Store) RecordFailure(runID string, err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}
	f := Classify(err)
	if verr := f.Validate(); verr != nil {
		return Failure{}, fmt.Errorf("invalid failure: %w", verr)
	}
	if _, lerr := s.LoadRun(runID); lerr != nil {
		return Failure{}, lerr
	}
	data, merr := fsutil.MarshalStable(f)
	if merr != nil {
		return Failure{}, fmt.Errorf("marshal failure: %w", merr)
	}
	if werr := fsutil.WriteFileAtomic(s.failurePath(runID), data, 0o644); werr != nil {
		return Failure{}, fmt.Errorf("write failure: %w", werr)
	}
	if _, ferr := s.FinishRun(runID, RunFailed); ferr != nil {
		return Failure{}, ferr
	}
	return f, nil
}

func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	if err := s.load(runID, s.runPath(runID), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

func (s *Store) LoadFailure(runID string) (Failure, error) {
	var f Failure
	if err := s.load(runID, s.failurePath(runID), &f); err != nil {
		return Failure{}, err
	}
	if err := f.Validate(); err != nil {
		return Failure{}, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return f, nil
}

// ListRunIDs returns the ids of all recorded runs, sorted.
func (s *Store) ListRunIDs() ([]string, error) {
	entries, err := os.ReadDir(s.runsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) saveRun(run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if err := fsutil.EnsureDir(s.runDir(run.RunID), 0o755); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := fsutil.MarshalStable(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.runPath(run.RunID), data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (s *Store) load(runID, path string, dst any) error {
	if strings.TrimSpace(runID) == "" || strings.ContainsAny(runID, `/\`) {
		return core.Errorf(core.ErrInvalidParameter, "runstate", "invalid run id %q", runID)
	}
	err := fsutil.ReadJSONStrict(path, dst)
	if errors.Is(err, os.ErrNotExist) {
		return core.Errorf(core.ErrNotFound, "runstate", "%s for run %s", filepath.Base(path), runID)
	}
	return err
}
