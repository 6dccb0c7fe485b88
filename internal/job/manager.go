package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/line-draw/internal/model"
	"github.com/aliskhannn/line-draw/internal/render"
	"github.com/aliskhannn/line-draw/internal/sim"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrInvalidState = errors.New("job is not in a startable state")
	ErrNotReady     = errors.New("job result is not ready")
	ErrQueueFull    = errors.New("run queue is full")
)

// progressBuffer bounds the per-job progress channel. Progress is lossy by
// contract; terminal notifications travel on a dedicated slot instead.
const progressBuffer = 16

// ArtifactStorage mirrors uploaded originals and rendered results to an
// artifact store (local FS or S3-compatible). Best effort: the in-memory
// job record stays canonical.
type ArtifactStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Delete(ctx context.Context, subdir, filename string) error
}

// EventPublisher sends job lifecycle events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// Config tunes the manager's worker pool and rendering.
type Config struct {
	Workers          int
	QueueSize        int
	ProgressInterval int
	Render           render.Options
}

type task struct {
	id     uuid.UUID
	gen    uint64
	params model.Params
}

// record is the live state of one job. Mutated only under Manager.mu;
// the single background run owning the job is the only writer of its
// status fields.
type record struct {
	id       uuid.UUID
	gen      uint64
	status   model.Status
	progress float64
	params   model.Params
	err      string

	image      image.Image
	trajectory []sim.Point
	result     image.Image

	progressCh chan model.Notification
	terminalCh chan model.Notification
}

// Manager owns the in-process job registry and runs simulations on a
// fixed worker pool, off the request path. Jobs are ephemeral: nothing
// survives a restart.
type Manager struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*record

	tasks chan task
	cfg   Config

	storage   ArtifactStorage // may be nil
	publisher EventPublisher  // may be nil
}

// New creates a Manager. storage and pub may be nil to disable artifact
// mirroring and event publishing.
func New(cfg Config, storage ArtifactStorage, pub EventPublisher) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Render.Size <= 0 {
		cfg.Render = render.DefaultOptions()
	}

	return &Manager{
		jobs:      make(map[uuid.UUID]*record),
		tasks:     make(chan task, cfg.QueueSize),
		cfg:       cfg,
		storage:   storage,
		publisher: pub,
	}
}

// Run consumes the task queue with the configured number of workers until
// the context is canceled. The caller adds itself to wg before starting.
func (m *Manager) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().Int("workers", m.cfg.Workers).Msg("starting simulation workers")

	var workers sync.WaitGroup
	for i := 0; i < m.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			m.worker(ctx)
		}()
	}
	workers.Wait()

	zlog.Logger.Info().Msg("simulation workers stopped")
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-m.tasks:
			m.runTask(ctx, t)
		}
	}
}

// Create registers a new pending job owning the given image and mirrors
// the original to storage.
func (m *Manager) Create(ctx context.Context, img image.Image) uuid.UUID {
	r := &record{
		id:         uuid.New(),
		status:     model.StatusPending,
		image:      img,
		progressCh: make(chan model.Notification, progressBuffer),
		terminalCh: make(chan model.Notification, 1),
	}

	m.mu.Lock()
	m.jobs[r.id] = r
	m.mu.Unlock()

	m.saveArtifact(ctx, "uploads", r.id, img)

	return r.id
}

// Start transitions a Pending (or Failed) job to Processing and enqueues
// its run on the worker pool. The caller is never blocked by the run.
func (m *Manager) Start(id uuid.UUID, params model.Params) error {
	m.mu.Lock()

	r, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return ErrJobNotFound
	}
	if r.status == model.StatusProcessing || r.status == model.StatusCompleted {
		m.mu.Unlock()
		return fmt.Errorf("%w: job is %s", ErrInvalidState, r.status)
	}

	r.gen++
	r.status = model.StatusProcessing
	r.progress = 0
	r.params = params
	r.err = ""
	t := task{id: r.id, gen: r.gen, params: params}
	m.mu.Unlock()

	select {
	case m.tasks <- t:
		return nil
	default:
		// Roll the slot back so the job stays startable.
		m.mu.Lock()
		if cur, ok := m.jobs[id]; ok && cur.gen == t.gen {
			cur.status = model.StatusPending
		}
		m.mu.Unlock()
		return ErrQueueFull
	}
}

// Status returns a read-only snapshot of the job.
func (m *Manager) Status(id uuid.UUID) (model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.jobs[id]
	if !ok {
		return model.Snapshot{}, ErrJobNotFound
	}

	return snapshot(r), nil
}

// Result returns the rendered image of a completed job.
func (m *Manager) Result(id uuid.UUID) (image.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if r.status != model.StatusCompleted || r.result == nil {
		return nil, ErrNotReady
	}

	return r.result, nil
}

// Delete removes the job, releases its image, trajectory, and result, and
// clears its mirrored artifacts. A run still active for the removed id
// will find its writes dropped by the registry lookup.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	if _, ok := m.jobs[id]; !ok {
		m.mu.Unlock()
		return ErrJobNotFound
	}
	delete(m.jobs, id)
	m.mu.Unlock()

	m.deleteArtifacts(ctx, id)

	return nil
}

// deleteArtifacts removes the job's mirrored upload and result from the
// artifact store. Best effort: a missing artifact is not an error.
func (m *Manager) deleteArtifacts(ctx context.Context, id uuid.UUID) {
	if m.storage == nil {
		return
	}

	for _, subdir := range []string{"uploads", "results"} {
		err := m.storage.Delete(ctx, subdir, id.String()+".png")
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			zlog.Logger.Err(err).
				Str("job_id", id.String()).
				Str("subdir", subdir).
				Msg("failed to delete artifact")
		}
	}
}

// Subscribe returns the current snapshot plus the job's progress and
// terminal channels. Progress delivery is lossy; the terminal channel
// carries exactly one completion or failure notification per run.
func (m *Manager) Subscribe(id uuid.UUID) (model.Snapshot, <-chan model.Notification, <-chan model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.jobs[id]
	if !ok {
		return model.Snapshot{}, nil, nil, ErrJobNotFound
	}

	return snapshot(r), r.progressCh, r.terminalCh, nil
}

func snapshot(r *record) model.Snapshot {
	return model.Snapshot{
		ID:       r.id,
		Status:   r.status,
		Progress: r.progress,
		Error:    r.err,
	}
}

// runTask executes one simulation run. Errors never cross this boundary:
// they are recorded on the job and surfaced via status and the terminal
// notification.
func (m *Manager) runTask(ctx context.Context, t task) {
	m.mu.RLock()
	r, ok := m.jobs[t.id]
	var img image.Image
	if ok && r.gen == t.gen {
		img = r.image
	}
	m.mu.RUnlock()

	if img == nil {
		// Deleted or restarted since enqueue.
		return
	}

	zlog.Logger.Info().
		Str("job_id", t.id.String()).
		Int("iterations", t.params.Iterations).
		Msg("simulation started")

	cfg := sim.Config{
		BlurSigma:        t.params.BlurSigma,
		Iterations:       t.params.Iterations,
		StartX:           t.params.StartX,
		StartY:           t.params.StartY,
		ProgressInterval: m.cfg.ProgressInterval,
	}

	trajectory, err := sim.Trace(img, cfg, func(p sim.Progress) {
		m.reportProgress(t, p)
	})
	if err != nil {
		m.fail(ctx, t, err)
		return
	}

	result := render.Trajectory(trajectory, m.cfg.Render)
	m.complete(ctx, t, trajectory, result)
}

// reportProgress updates the job's progress snapshot and pushes a lossy
// notification; a saturated channel drops the message.
func (m *Manager) reportProgress(t task, p sim.Progress) {
	n := model.Notification{
		Type:             "progress",
		Status:           model.StatusProcessing,
		Progress:         p.Percent,
		CurrentIteration: p.CurrentIteration,
		TotalIterations:  p.TotalIterations,
		TrajectoryPoints: p.TrajectoryPoints,
	}

	m.mu.Lock()
	r, ok := m.jobs[t.id]
	if !ok || r.gen != t.gen {
		m.mu.Unlock()
		return
	}
	r.progress = p.Percent
	ch := r.progressCh
	m.mu.Unlock()

	select {
	case ch <- n:
	default:
	}
}

func (m *Manager) complete(ctx context.Context, t task, trajectory []sim.Point, result image.Image) {
	m.mu.Lock()
	r, ok := m.jobs[t.id]
	if !ok || r.gen != t.gen {
		m.mu.Unlock()
		return
	}
	r.trajectory = trajectory
	r.result = result
	r.status = model.StatusCompleted
	r.progress = 100
	ch := r.terminalCh
	m.mu.Unlock()

	deliverTerminal(ch, model.Notification{
		Type:     "complete",
		Status:   model.StatusCompleted,
		Progress: 100,
	})

	m.saveArtifact(ctx, "results", t.id, result)
	m.publish(ctx, model.Event{
		JobID:     t.id,
		Type:      model.EventJobCompleted,
		CreatedAt: time.Now().UTC(),
	})

	zlog.Logger.Info().
		Str("job_id", t.id.String()).
		Int("points", len(trajectory)).
		Msg("simulation completed")
}

func (m *Manager) fail(ctx context.Context, t task, runErr error) {
	m.mu.Lock()
	r, ok := m.jobs[t.id]
	if !ok || r.gen != t.gen {
		m.mu.Unlock()
		return
	}
	r.status = model.StatusFailed
	r.err = runErr.Error()
	ch := r.terminalCh
	m.mu.Unlock()

	deliverTerminal(ch, model.Notification{
		Type:   "error",
		Status: model.StatusFailed,
		Error:  runErr.Error(),
	})

	m.publish(ctx, model.Event{
		JobID:     t.id,
		Type:      model.EventJobFailed,
		Error:     runErr.Error(),
		CreatedAt: time.Now().UTC(),
	})

	zlog.Logger.Err(runErr).
		Str("job_id", t.id.String()).
		Msg("simulation failed")
}

// deliverTerminal guarantees the terminal slot ends up holding the
// notification even if a previous run's unread terminal still occupies it.
func deliverTerminal(ch chan model.Notification, n model.Notification) {
	for {
		select {
		case ch <- n:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (m *Manager) saveArtifact(ctx context.Context, subdir string, id uuid.UUID, img image.Image) {
	if m.storage == nil {
		return
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		zlog.Logger.Err(err).Str("job_id", id.String()).Msg("failed to encode artifact")
		return
	}

	if _, err := m.storage.Save(ctx, subdir, id.String()+".png", &buf); err != nil {
		zlog.Logger.Err(err).
			Str("job_id", id.String()).
			Str("subdir", subdir).
			Msg("failed to save artifact")
	}
}

func (m *Manager) publish(ctx context.Context, e model.Event) {
	if m.publisher == nil {
		return
	}

	if err := m.publisher.Publish(ctx, e); err != nil {
		zlog.Logger.Err(err).
			Str("job_id", e.JobID.String()).
			Str("event", e.Type).
			Msg("failed to publish job event")
	}
}
