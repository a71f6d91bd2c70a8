package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vantaa-jobs-etl/models"
	"vantaa-jobs-etl/observability"
	"vantaa-jobs-etl/scraper/vantaa"
	"vantaa-jobs-etl/storage"
	"vantaa-jobs-etl/utils"
)

// State is the pipeline's position in a run.
type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateLoading      State = "loading"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// RunError reports which stage failed and how. Err is the stage's own typed
// error and can be inspected with errors.As.
type RunError struct {
	Stage State
	Kind  string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline: %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Extractor produces the raw batch for a run.
type Extractor interface {
	Extract(ctx context.Context) ([]models.RawListing, error)
}

// ListingTransformer reshapes a raw batch.
type ListingTransformer interface {
	Transform(raw []models.RawListing) ([]models.NormalizedListing, error)
}

// Connector opens the store for the load stage. The pipeline closes what it
// returns.
type Connector func(ctx context.Context) (*storage.Store, error)

// RunReport summarises one run, successful or not.
type RunReport struct {
	RunID       string
	State       State
	FailedStage State
	Extracted   int
	Transformed int
	Loaded      int
	StartedAt   time.Time
	Duration    time.Duration
}

// Pipeline runs Extract, Transform and Load strictly in sequence. It does not
// retry; a failed stage ends the run.
type Pipeline struct {
	extractor   Extractor
	transformer ListingTransformer
	writer      storage.ListingWriter
	connect     Connector
	metrics     *observability.Metrics
	logger      *utils.Logger

	state State
}

// NewPipeline wires the three stages together. metrics may be nil.
func NewPipeline(
	extractor Extractor,
	transformer ListingTransformer,
	writer storage.ListingWriter,
	connect Connector,
	metrics *observability.Metrics,
	logger *utils.Logger,
) *Pipeline {
	return &Pipeline{
		extractor:   extractor,
		transformer: transformer,
		writer:      writer,
		connect:     connect,
		metrics:     metrics,
		logger:      logger,
		state:       StateIdle,
	}
}

// State returns where the last (or current) run stopped.
func (p *Pipeline) State() State { return p.state }

// Run executes one full ETL run. On failure the returned report is still
// populated and the error is a *RunError.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	p.state = StateIdle

	err := p.run(ctx, report)

	report.State = p.state
	report.Duration = time.Since(report.StartedAt)
	if p.metrics != nil {
		p.metrics.RunFinished(err == nil, report.Loaded)
	}
	if err != nil {
		return report, err
	}

	p.logger.Info("[pipeline] Run %s complete: extracted=%d transformed=%d loaded=%d in %s",
		report.RunID, report.Extracted, report.Transformed, report.Loaded,
		report.Duration.Round(time.Millisecond))
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *RunReport) error {
	p.enter(report, StateExtracting)
	start := time.Now()
	raw, err := p.extractor.Extract(ctx)
	p.observe(StateExtracting, start)
	if err != nil {
		return p.fail(report, err)
	}
	report.Extracted = len(raw)

	p.enter(report, StateTransforming)
	start = time.Now()
	listings, err := p.transformer.Transform(raw)
	p.observe(StateTransforming, start)
	if err != nil {
		return p.fail(report, err)
	}
	report.Transformed = len(listings)

	p.enter(report, StateLoading)
	start = time.Now()
	loaded, err := p.load(ctx, listings)
	p.observe(StateLoading, start)
	if err != nil {
		return p.fail(report, err)
	}
	report.Loaded = loaded

	p.enter(report, StateComplete)
	return nil
}

func (p *Pipeline) load(ctx context.Context, listings []models.NormalizedListing) (int, error) {
	store, err := p.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			p.logger.Warn("[pipeline] Closing store: %v", cerr)
		}
	}()
	return p.writer.Write(ctx, store, listings)
}

func (p *Pipeline) enter(report *RunReport, next State) {
	p.logger.Debug("[pipeline] Run %s: %s -> %s", report.RunID, p.state, next)
	p.state = next
}

// fail is the single place a stage error is logged.
func (p *Pipeline) fail(report *RunReport, err error) error {
	stage := p.state
	kind := errorKind(err)
	report.FailedStage = stage
	p.state = StateFailed

	p.logger.Error("[pipeline] Run %s failed while %s (%s): %v", report.RunID, stage, kind, err)
	if p.metrics != nil {
		p.metrics.StageFailed(string(stage), kind)
	}
	return &RunError{Stage: stage, Kind: kind, Err: err}
}

func (p *Pipeline) observe(stage State, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(string(stage), time.Since(start))
	}
}

func errorKind(err error) string {
	var (
		ee *vantaa.ExtractionError
		te *TransformationError
		le *storage.LoadError
	)
	switch {
	case errors.As(err, &ee):
		return string(ee.Kind)
	case errors.As(err, &te):
		return "missing_column"
	case errors.As(err, &le):
		return string(le.Kind)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "unknown"
}
