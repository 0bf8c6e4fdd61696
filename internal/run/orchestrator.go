// Package run drives a dataset generation run: upload the selected images,
// ask the server to generate a dataset from them, then fetch the result.
package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/datagen/internal/config"
	"github.com/lehigh-university-libraries/datagen/internal/models"
	"github.com/lehigh-university-libraries/datagen/internal/selection"
	"github.com/rs/zerolog"
)

// Uploader stores images remotely and returns one entry per image, in order.
type Uploader interface {
	Upload(ctx context.Context, images []selection.Image) ([]models.UploadedFile, error)
}

// Generator runs the model over previously uploaded images.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
}

// Downloader fetches a generated artifact to wherever the user keeps files.
type Downloader interface {
	Download(ctx context.Context, artifact string) error
}

// Reporter is the read-only view of a run used by presentation code.
type Reporter interface {
	State() State
}

// Orchestrator owns the run state and every call to the remote stages.
// One run executes at a time; Start is safe to call from any goroutine.
type Orchestrator struct {
	files      *selection.Store
	cfg        *config.RunConfig
	uploader   Uploader
	generator  Generator
	downloader Downloader

	notify  func(Notice)
	observe func(State)
	logger  zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	state      State
	generating bool
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithDownloader sets the sink used for the generated artifact.
func WithDownloader(d Downloader) Option {
	return func(o *Orchestrator) { o.downloader = d }
}

// WithNotifier receives every user-facing notice.
func WithNotifier(fn func(Notice)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.notify = fn
		}
	}
}

// WithObserver receives a copy of the state after every transition, in order.
func WithObserver(fn func(State)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.observe = fn
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns an idle Orchestrator reading images from files and settings
// from cfg.
func New(files *selection.Store, cfg *config.RunConfig, up Uploader, gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		files:     files,
		cfg:       cfg,
		uploader:  up,
		generator: gen,
		notify:    func(Notice) {},
		observe:   func(State) {},
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a copy of the current run state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Generating reports whether a run is in flight.
func (o *Orchestrator) Generating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating
}

// Start checks the preconditions and, when they hold, runs the pipeline to
// completion before returning. A rejected start returns a *GuardError and
// leaves the state untouched. Stage failures are not returned: they end the
// run in Failed and are reported through the notifier.
func (o *Orchestrator) Start(ctx context.Context) error {
	images := o.files.Images()
	cfg := *o.cfg

	if err := checkPreconditions(images, cfg); err != nil {
		o.reject(err)
		return err
	}

	st, ok := o.acquire()
	if !ok {
		o.reject(ErrRunInProgress)
		return ErrRunInProgress
	}
	defer o.release()

	o.published(st)
	o.execute(ctx, images, cfg)
	return nil
}

func checkPreconditions(images []selection.Image, cfg config.RunConfig) *GuardError {
	switch {
	case len(images) == 0:
		return ErrNoImages
	case strings.TrimSpace(cfg.Endpoint) == "":
		return ErrMissingEndpoint
	case strings.TrimSpace(cfg.Instruction) == "":
		return ErrMissingInstruction
	}
	return nil
}

// acquire sets the in-progress flag and resets the state for a new run.
func (o *Orchestrator) acquire() (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generating {
		return State{}, false
	}
	o.generating = true
	o.state = State{
		RunID:     uuid.NewString(),
		Phase:     Uploading,
		StartedAt: o.now(),
	}
	return o.state, true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.generating = false
	o.mu.Unlock()
}

func (o *Orchestrator) execute(ctx context.Context, images []selection.Image, cfg config.RunConfig) {
	total := len(images)
	logger := o.logger.With().Str("run_id", o.State().RunID).Logger()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("unexpected error: %v", r)
		logger.Error().Err(err).Msg("Run panicked")
		switch o.State().Phase {
		case Uploading:
			o.fail(logger, &StageError{Stage: StageUpload, Err: err}, total)
		case Generating:
			o.fail(logger, &StageError{Stage: StageGenerate, Err: err}, total)
		default:
			o.notify(Notice{Kind: NoticeWarning, Message: "download failed: " + err.Error()})
		}
	}()

	logger.Info().Int("images", total).Str("endpoint", cfg.Endpoint).Msg("Uploading images")
	refs, err := o.upload(ctx, images)
	if err != nil {
		o.fail(logger, &StageError{Stage: StageUpload, Err: err}, total)
		return
	}
	o.transition(func(s *State) {
		s.Progress = ProgressUploaded
		s.Phase = Generating
	})

	logger.Info().Int("files", len(refs)).Msg("Generating dataset")
	res, err := o.generate(ctx, cfg, refs)
	if err != nil {
		o.fail(logger, &StageError{Stage: StageGenerate, Err: err}, total)
		return
	}
	st := o.transition(func(s *State) {
		s.Progress = ProgressComplete
		s.SuccessCount = res.Success
		s.FailureCount = res.Failed
		s.OutputArtifact = res.OutputFile
		s.Phase = Done
		s.FinishedAt = o.now()
	})
	logger.Info().
		Int("success", st.SuccessCount).
		Int("failed", st.FailureCount).
		Str("artifact", st.OutputArtifact).
		Msg("Generation complete")

	o.deliver(ctx, logger, st)
}

func (o *Orchestrator) upload(ctx context.Context, images []selection.Image) ([]UploadedRef, error) {
	files, err := o.uploader.Upload(ctx, images)
	if err != nil {
		return nil, err
	}
	if len(files) != len(images) {
		return nil, fmt.Errorf("server stored %d of %d images", len(files), len(images))
	}

	refs := make([]UploadedRef, len(files))
	for i, f := range files {
		if f.SavedName == "" {
			return nil, fmt.Errorf("server returned no name for %s", images[i].Name)
		}
		original := f.OriginalName
		if original == "" {
			original = images[i].Name
		}
		refs[i] = UploadedRef{ServedName: f.SavedName, OriginalName: original}
	}
	return refs, nil
}

func (o *Orchestrator) generate(ctx context.Context, cfg config.RunConfig, refs []UploadedRef) (*models.GenerateResponse, error) {
	names := make([]string, len(refs))
	mapping := make(map[string]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.ServedName
		mapping[ref.ServedName] = ref.OriginalName
	}

	res, err := o.generator.Generate(ctx, models.GenerateRequest{
		Endpoint:    strings.TrimSpace(cfg.Endpoint),
		APIKey:      cfg.APIKey,
		Instruction: cfg.Instruction,
		Temperature: cfg.Temperature,
		FileNames:   names,
		FileMapping: mapping,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("empty generate response")
	}
	return res, nil
}

// deliver fetches the artifact of a finished run, if there is one.
func (o *Orchestrator) deliver(ctx context.Context, logger zerolog.Logger, st State) {
	if st.OutputArtifact == "" {
		return
	}
	if o.downloader != nil {
		if err := o.downloader.Download(ctx, st.OutputArtifact); err != nil {
			logger.Warn().Err(err).Str("artifact", st.OutputArtifact).Msg("Download failed")
			o.notify(Notice{Kind: NoticeWarning, Message: fmt.Sprintf("download of %s failed: %v", st.OutputArtifact, err)})
		}
	}
	o.notify(Notice{
		Kind:    NoticeSuccess,
		Message: fmt.Sprintf("generated %d records, %s is ready", st.SuccessCount, st.OutputArtifact),
	})
}

// fail ends the run. Stages are all-or-nothing, so every selected image
// counts as failed; progress keeps its last value.
func (o *Orchestrator) fail(logger zerolog.Logger, err *StageError, total int) {
	o.transition(func(s *State) {
		s.Phase = Failed
		s.FailureCount = total
		s.FinishedAt = o.now()
	})
	logger.Error().Err(err.Err).Str("stage", string(err.Stage)).Msg("Run failed")
	o.notify(Notice{Kind: NoticeFailed, Message: "generation failed: " + err.Error()})
}

func (o *Orchestrator) reject(err *GuardError) {
	o.logger.Warn().Str("reason", string(err.Reason)).Msg("Run rejected")
	o.notify(Notice{Kind: NoticeRejected, Reason: err.Reason, Message: rejectionMessage(err.Reason)})
}

func rejectionMessage(r Reason) string {
	switch r {
	case ReasonNoImages:
		return "please add images first"
	case ReasonMissingEndpoint:
		return "please enter the model endpoint"
	case ReasonMissingInstruction:
		return "please enter the instruction"
	case ReasonBusy:
		return "a run is already in progress"
	default:
		return string(r)
	}
}

// transition applies fn to the state and publishes the result.
func (o *Orchestrator) transition(fn func(*State)) State {
	o.mu.Lock()
	fn(&o.state)
	st := o.state
	o.mu.Unlock()

	o.published(st)
	return st
}

func (o *Orchestrator) published(st State) {
	o.logger.Debug().Str("run_id", st.RunID).Stringer("phase", st.Phase).Int("progress", st.Progress).Msg("State changed")
	o.observe(st)
}
