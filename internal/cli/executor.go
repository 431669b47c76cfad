package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"segweaver/internal/artifact"
	"segweaver/internal/cluster"
	"segweaver/internal/config"
	"segweaver/internal/dag"
	"segweaver/internal/fsutil"
	"segweaver/internal/observe"
	"segweaver/internal/registry"
	"segweaver/internal/runstate"
	"segweaver/internal/segment"
	"segweaver/internal/table"
)

// Execute runs the segmentation pipeline described by inv.Config and maps the
// outcome to an exit code.
//
// Every run is recorded in the ledger under Config.StateDir. Failures after
// the run is started are classified and persisted before returning:
//   - unreadable input, unreachable cache or registry, bad parameters: ExitConfigError
//   - a failed node or a cancelled run: ExitPipelineFailure
//   - a panic or an invalid pipeline graph: ExitInternalError
//
// On success the segmented dataset is written to Config.Data.Output.
func Execute(ctx context.Context, inv Invocation) (res Result, execErr error) {
	res.ExitCode = ExitInternalError
	if err := inv.Validate(); err != nil {
		res.ExitCode = ExitCode(err)
		return res, err
	}
	cfg := inv.Config
	log := inv.Logger

	st, err := runstate.NewStore(cfg.StateDir)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("open run ledger: %w", err)
	}
	run, err := st.StartRun(runstate.Run{Params: cfg.Params()})
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, fmt.Errorf("start run: %w", err)
	}
	res.RunID = run.RunID
	log = log.With().Str("run_id", run.RunID).Logger()

	fail := func(code int, err error) (Result, error) {
		if _, rerr := st.RecordFailure(run.RunID, err); rerr != nil {
			log.Error().Err(rerr).Msg("recording failure")
		}
		res.ExitCode = code
		return res, err
	}

	defer func() {
		if r := recover(); r != nil {
			res, execErr = fail(ExitInternalError, fmt.Errorf("panic: %v", r))
		}
	}()

	data, err := readInput(cfg.Data)
	if err != nil {
		return fail(ExitConfigError, err)
	}
	store, closeStore, err := OpenStore(ctx, cfg.Cache)
	if err != nil {
		return fail(ExitConfigError, err)
	}
	defer closeStore()
	reg, closeReg, err := OpenRegistry(ctx, cfg.Registry)
	if err != nil {
		return fail(ExitConfigError, err)
	}
	defer closeReg()

	otelObs, err := observe.NewOTel(nil, nil)
	if err != nil {
		return fail(ExitInternalError, err)
	}
	observers := []dag.Observer{observe.NewLog(log), otelObs}
	var bar *observe.Progress
	if inv.Progress != nil {
		bar = observe.NewProgress(inv.Progress, 0)
		defer bar.Finish()
		observers = append(observers, bar)
	}

	p := dag.NewPipeline(dag.WithStore(store), dag.WithObserver(observers...), dag.WithLogger(log))
	if err := segment.Declare(p, data, cfg.SegmentConfig(), reg); err != nil {
		return fail(ExitConfigError, err)
	}
	g, err := p.Graph()
	if err != nil {
		return fail(ExitInternalError, err)
	}
	if err := st.SetGraphHash(run.RunID, g.Hash().String()); err != nil {
		log.Warn().Err(err).Msg("recording graph hash")
	}
	if bar != nil {
		bar.SetTotal(len(g.Nodes()))
	}

	gr, runErr := p.Run(log.WithContext(ctx))
	if gr == nil {
		return fail(ExitInternalError, runErr)
	}
	if err := writeTrace(inv.TracePath, gr); err != nil {
		log.Error().Err(err).Str("path", inv.TracePath).Msg("writing trace")
	}
	seg, collectErr := segment.Collect(gr)
	res.Segment = seg
	if runErr != nil {
		return fail(ExitPipelineFailure, runErr)
	}
	if collectErr != nil {
		return fail(ExitInternalError, collectErr)
	}

	if err := writeOutput(cfg.Data.Output, seg.Segmented); err != nil {
		return fail(ExitConfigError, err)
	}
	if _, err := st.FinishRun(run.RunID, runstate.RunSucceeded); err != nil {
		log.Warn().Err(err).Msg("finishing run")
	}
	log.Info().
		Int("k", seg.Selection.K).
		Float64("score", seg.Selection.Score).
		Str("output", cfg.Data.Output).
		Msg("segmentation finished")
	res.ExitCode = ExitSuccess
	return res, nil
}

// OpenStore opens the artifact store selected by cfg. The returned func
// releases it.
func OpenStore(ctx context.Context, cfg config.CacheConfig) (artifact.Store, func(), error) {
	switch cfg.Backend {
	case "memory":
		return artifact.NewMemoryStore(), func() {}, nil
	case "file":
		if err := fsutil.EnsureDir(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create cache dir: %w", err)
		}
		return artifact.NewFileStore(cfg.Dir), func() {}, nil
	case "redis":
		s, err := artifact.DialRedisStore(ctx, cfg.RedisURL, cfg.Prefix, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// OpenRegistry opens the model registry selected by cfg. The returned func
// releases it.
func OpenRegistry(ctx context.Context, cfg config.RegistryConfig) (registry.Registry, func(), error) {
	switch cfg.Backend {
	case "file":
		return registry.NewFileRegistry(cfg.Dir), func() {}, nil
	case "postgres":
		r, err := registry.ConnectPostgresRegistry(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
	}
}

// LoadModel fetches a saved model from the configured registry.
func LoadModel(ctx context.Context, cfg *config.Config, name string) (*cluster.Model, error) {
	reg, closeReg, err := OpenRegistry(ctx, cfg.Registry)
	if err != nil {
		return nil, err
	}
	defer closeReg()
	return reg.Load(ctx, name)
}

// ListModels returns the names saved in the configured registry.
func ListModels(ctx context.Context, cfg *config.Config) ([]string, error) {
	reg, closeReg, err := OpenRegistry(ctx, cfg.Registry)
	if err != nil {
		return nil, err
	}
	defer closeReg()
	return reg.List(ctx)
}

func readInput(cfg config.DataConfig) (*table.Frame, error) {
	f, err := os.Open(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	data, err := table.ReadCSV(f, table.CSVOptions{IndexColumn: cfg.IndexColumn})
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", cfg.Input, err)
	}
	return data, nil
}

func writeOutput(path string, f *table.Frame) error {
	if path == "" {
		return nil
	}
	if f == nil {
		return errors.New("no segmented dataset to write")
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, f); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func writeTrace(path string, gr *dag.GraphResult) error {
	if path == "" {
		return nil
	}
	b, err := gr.Trace.CanonicalJSON()
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, b, 0o644)
}
