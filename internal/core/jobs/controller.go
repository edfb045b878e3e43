package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

// State is a step of the job lifecycle of one repository view.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var (
	ErrConsentRequired  = errors.New("codebase analysis has not been authorized")
	ErrGenerateDisabled = errors.New("generation is not available in the current state")
	ErrNoResult         = errors.New("no completed analysis to save")
	ErrViewClosed       = errors.New("view closed")
)

// Log lines shown in the job console.
const (
	logQueued       = "queued %s"
	logAnalyzing    = "analyzing..."
	logComplete     = "complete"
	logFailed       = "failed"
	logSubmitFailed = "error: failed to contact backend"
)

const ledgerTimeout = 5 * time.Second

// Options tunes a Controller.
type Options struct {
	PollInterval    time.Duration
	NotificationTTL time.Duration
	// Ledger, when set, receives submitted jobs and their terminal status.
	Ledger core.JobLedger
	Owner  string
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.NotificationTTL <= 0 {
		o.NotificationTTL = 4 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type GenerateRequest struct {
	Technical bool `json:"technical"`
	Consent   bool `json:"consent"`
}

// Snapshot is a copy of a controller's state for presentation.
type Snapshot struct {
	Repository   models.RepositoryReference `json:"repository"`
	State        State                      `json:"state"`
	JobID        models.ID                  `json:"job_id,omitempty"`
	Technical    bool                       `json:"technical"`
	Logs         []string                   `json:"logs"`
	Result       *models.AnalysisResult     `json:"result,omitempty"`
	Notification *models.Notification       `json:"notification,omitempty"`
	Saving       bool                       `json:"saving"`
	CanGenerate  bool                       `json:"can_generate"`
	CanSave      bool                       `json:"can_save"`
}

// Controller drives submit -> poll -> result for one repository view:
//
//	Idle -> Submitting -> Polling -> Completed | Failed
//
// At most one poll loop runs per controller. The loop is bound to the
// controller's lifetime and stops on a terminal status or on Close.
type Controller struct {
	repo   models.RepositoryReference
	client core.JobClient
	opts   Options
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loops  sync.WaitGroup

	mu        sync.Mutex
	state     State
	job       *models.AnalysisJob
	logs      []string
	result    *models.AnalysisResult
	note      *models.Notification
	noteTimer *time.Timer
	saving    bool
	closed    bool
	subs      map[chan Snapshot]struct{}
}

func NewController(repo models.RepositoryReference, client core.JobClient, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		repo:   repo,
		client: client,
		opts:   opts.withDefaults(),
		logger: log.With().Str("repo_id", repo.ID).Str("repo", repo.Name).Logger(),
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
		subs:   make(map[chan Snapshot]struct{}),
	}
}

// Generate submits an analysis job. Without consent it returns
// ErrConsentRequired and makes no network call. A submission error returns
// the view to Idle; it is never retried automatically.
func (c *Controller) Generate(ctx context.Context, sess models.Session, req GenerateRequest) error {
	if !req.Consent {
		return ErrConsentRequired
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrViewClosed
	}
	if !c.canGenerateLocked() {
		c.mu.Unlock()
		return ErrGenerateDisabled
	}
	c.state = StateSubmitting
	c.job = &models.AnalysisJob{Repository: c.repo, Technical: req.Technical}
	c.publishLocked()
	c.mu.Unlock()

	jobID, err := c.client.SubmitAnalysisJob(ctx, sess, c.repo, req.Technical)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrViewClosed
	}
	if err != nil {
		c.state = StateIdle
		c.job = nil
		c.appendLogLocked(logSubmitFailed)
		c.notifyLocked(models.NotifyError, "Failed to contact backend system.")
		c.publishLocked()
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("analysis job submission failed")
		return err
	}

	c.job.ID = jobID
	c.job.Status = models.JobPending
	c.state = StatePolling
	c.appendLogLocked(fmt.Sprintf(logQueued, jobID))
	job := *c.job
	c.loops.Add(1)
	go c.pollLoop(job, sess)
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info().Str("job_id", jobID.String()).Bool("technical", req.Technical).Msg("analysis job queued")
	c.recordSubmitted(job)
	return nil
}

// pollLoop asks for the job status once per tick until a terminal status is
// observed or the controller is closed. Ticks are handled one at a time, so
// polls for the same job never overlap. Poll errors are logged and retried
// on the next tick.
func (c *Controller) pollLoop(job models.AnalysisJob, sess models.Session) {
	defer c.loops.Done()

	logger := c.logger.With().Str("job_id", job.ID.String()).Logger()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}

		report, err := c.client.PollJobStatus(c.ctx, sess, job.ID)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn().Err(err).Msg("job status poll failed; retrying on next tick")
			continue
		}
		if c.apply(job.ID, report) {
			logger.Info().Str("status", string(report.Status)).Msg("analysis job finished")
			c.recordStatus(job.ID, report.Status)
			return
		}
	}
}

// apply folds one status report into the state and reports whether polling is over.
func (c *Controller) apply(jobID models.ID, report models.JobStatusReport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.job == nil || c.job.ID != jobID || c.state != StatePolling {
		return true
	}

	switch report.Status {
	case models.JobPending:
		if n := len(c.logs); n > 0 && c.logs[n-1] == logAnalyzing {
			return false
		}
		c.appendLogLocked(logAnalyzing)
		c.publishLocked()
		return false
	case models.JobCompleted:
		if report.Result == nil {
			return false
		}
		result := *report.Result
		c.result = &result
		c.job.Status = models.JobCompleted
		c.state = StateCompleted
		c.appendLogLocked(logComplete)
		c.publishLocked()
		return true
	case models.JobFailed:
		c.job.Status = models.JobFailed
		c.state = StateFailed
		c.appendLogLocked(logFailed)
		c.notifyLocked(models.NotifyError, "Analysis job failed.")
		c.publishLocked()
		return true
	}
	return false
}

// Save persists the completed result. Every call is a separate backend call;
// saving twice creates two records.
// Save stores the completed result as a new record. The returned record is
// nil when the backend accepted the save without echoing it.
func (c *Controller) Save(ctx context.Context, sess models.Session) (*models.DocumentationRecord, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrViewClosed
	}
	if c.state != StateCompleted || c.result == nil {
		c.mu.Unlock()
		return nil, ErrNoResult
	}
	draft := models.NewDocumentationDraft(c.repo, *c.result)
	c.saving = true
	c.publishLocked()
	c.mu.Unlock()

	rec, err := c.client.SaveDocumentation(ctx, sess, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to save analysis")
		c.notifyLocked(models.NotifyError, "Failed to save data. Check logs.")
	} else {
		c.notifyLocked(models.NotifySuccess, "Analysis successfully saved to database.")
	}
	c.publishLocked()
	return rec, err
}

func (c *Controller) DismissNotification() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearNoteLocked()
	c.publishLocked()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe streams snapshots, starting with the current one. Slow readers
// only see the latest snapshot. The channel closes when ctx ends or the
// controller is closed.
func (c *Controller) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	ch <- c.snapshotLocked()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.ctx.Done():
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// Close tears the controller down: the poll loop is cancelled and has exited
// when Close returns, so no callback runs afterwards. Close is idempotent.
func (c *Controller) Close() {
	c.stop()
	c.loops.Wait()
}

// stop cancels the controller without waiting for the poll loop. State no
// longer changes once stop returns; an in-flight ledger write may still finish.
func (c *Controller) stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	if c.noteTimer != nil {
		c.noteTimer.Stop()
	}
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Controller) canGenerateLocked() bool {
	return c.state == StateIdle || c.state == StateFailed
}

func (c *Controller) appendLogLocked(line string) {
	c.logs = append(c.logs, line)
}

func (c *Controller) notifyLocked(kind models.NotificationKind, msg string) {
	c.clearNoteLocked()
	c.note = &models.Notification{
		Kind:      kind,
		Message:   msg,
		ExpiresAt: c.opts.Now().Add(c.opts.NotificationTTL),
	}
	note := c.note
	c.noteTimer = time.AfterFunc(c.opts.NotificationTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.note != note {
			return
		}
		c.note = nil
		c.publishLocked()
	})
}

func (c *Controller) clearNoteLocked() {
	if c.noteTimer != nil {
		c.noteTimer.Stop()
		c.noteTimer = nil
	}
	c.note = nil
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Repository:  c.repo,
		State:       c.state,
		Logs:        append([]string(nil), c.logs...),
		Saving:      c.saving,
		CanGenerate: !c.closed && c.canGenerateLocked(),
		CanSave:     !c.closed && c.state == StateCompleted && !c.saving,
	}
	if snap.Logs == nil {
		snap.Logs = []string{}
	}
	if c.job != nil {
		snap.JobID = c.job.ID
		snap.Technical = c.job.Technical
	}
	if c.result != nil {
		r := *c.result
		snap.Result = &r
	}
	if c.note.Active(c.opts.Now()) {
		n := *c.note
		snap.Notification = &n
	}
	return snap
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (c *Controller) recordSubmitted(job models.AnalysisJob) {
	if c.opts.Ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	rec := models.JobRecord{
		JobID:       job.ID,
		Owner:       c.opts.Owner,
		RepoID:      job.Repository.ID,
		RepoName:    job.Repository.Name,
		Technical:   job.Technical,
		Status:      models.JobPending,
		SubmittedAt: c.opts.Now(),
	}
	if err := c.opts.Ledger.RecordJobSubmitted(ctx, rec); err != nil {
		c.logger.Warn().Err(err).Str("job_id", job.ID.String()).Msg("job ledger write failed")
	}
}

func (c *Controller) recordStatus(jobID models.ID, status models.JobStatus) {
	if c.opts.Ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	if err := c.opts.Ledger.RecordJobStatus(ctx, jobID, status, c.opts.Now()); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID.String()).Msg("job ledger write failed")
	}
}
