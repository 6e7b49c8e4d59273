// Package engine implements the broadcast distribution core: the job
// registry, the per-session serial drivers, the anti-throttle state
// machine and the error classifier with its repository side effects.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/clock"
	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/platform"
	"github.com/nextlevelbuilder/adrelay/internal/store"
)

// Engine owns every running job, the connected-client set and the rate
// registry. Construct one per process and pass it around; there is no
// package-level state.
type Engine struct {
	opts   Options
	clock  clock.Clock
	stores *store.Stores
	client platform.SessionClient
	rates  *RateRegistry

	mu      sync.RWMutex
	jobs    map[uuid.UUID]*Job
	handles map[uuid.UUID]platform.Handle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartOptions tune one StartPosting call.
type StartOptions struct {
	// UsePriorityGroups restricts targeting to priority-flagged groups.
	UsePriorityGroups bool

	// MaxRounds caps this job's rounds (0 = engine default).
	MaxRounds int
}

// New constructs the engine. Jobs spawned later are bound to the
// engine's lifetime: Close stops them all.
func New(opts Options, clk clock.Clock, stores *store.Stores, client platform.SessionClient) *Engine {
	opts.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		opts:    opts,
		clock:   clk,
		stores:  stores,
		client:  client,
		rates:   NewRateRegistry(),
		jobs:    make(map[uuid.UUID]*Job),
		handles: make(map[uuid.UUID]platform.Handle),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Rates exposes the rate registry for diagnostics.
func (e *Engine) Rates() *RateRegistry { return e.rates }

// Close stops every job and waits for the round loops to exit.
func (e *Engine) Close() {
	e.mu.RLock()
	for _, j := range e.jobs {
		j.RequestStop()
	}
	e.mu.RUnlock()
	e.cancel()
	e.wg.Wait()
}

// StartPosting resolves the tenant's usable sessions and deliverable
// groups, persists a Post row and spawns the round loop. It fails with
// ErrNoUsableSession or ErrNoDeliverableGroup when resolution comes up
// empty; after that, all failures are internal to the job.
func (e *Engine) StartPosting(ctx context.Context, tenantID, adID uuid.UUID, startOpts StartOptions) (*Job, error) {
	ad, err := e.stores.Ads.GetByID(ctx, adID)
	if err != nil {
		return nil, err
	}
	if ad.TenantID != tenantID {
		return nil, ErrAdNotOwned
	}
	if ad.Content == "" {
		return nil, ErrEmptyContent
	}
	if e.adRunning(tenantID, adID) {
		return nil, ErrAdAlreadyRunning
	}

	tenant, err := e.stores.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	participants, err := e.resolveSessions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	job := e.newJob(tenant, ad, startOpts)
	total, err := e.countTargets(ctx, job, participants)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrNoDeliverableGroup
	}
	job.total = int64(total)

	now := e.clock.Now()
	post := &model.Post{
		ID:          job.PostID,
		AdID:        ad.ID,
		SessionID:   participants[0],
		Status:      model.PostPending,
		TotalGroups: total,
		StartedAt:   &now,
		CreatedAt:   now,
	}
	if err := e.stores.Posts.Create(ctx, post); err != nil {
		return nil, err
	}
	if err := e.stores.Posts.UpdateStatus(ctx, post.ID, model.PostInProgress); err != nil {
		return nil, err
	}

	e.registerAndRun(job)
	slog.Info("posting started",
		"job", job.ID, "tenant", tenantID, "ad", adID,
		"sessions", len(participants), "groups", total)
	return job, nil
}

// RetryFailed re-runs delivery for the groups whose history rows on the
// post are Failed. The retry is a single-round job.
func (e *Engine) RetryFailed(ctx context.Context, tenantID, postID uuid.UUID) (*Job, error) {
	post, err := e.stores.Posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	ad, err := e.stores.Ads.GetByID(ctx, post.AdID)
	if err != nil {
		return nil, err
	}
	if ad.TenantID != tenantID {
		return nil, ErrAdNotOwned
	}
	if e.adRunning(tenantID, ad.ID) {
		return nil, ErrAdAlreadyRunning
	}
	tenant, err := e.stores.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	failed, err := e.stores.Posts.ListFailedHistory(ctx, postID)
	if err != nil {
		return nil, err
	}
	if len(failed) == 0 {
		return nil, ErrNoDeliverableGroup
	}
	only := make(map[uuid.UUID]bool, len(failed))
	for _, h := range failed {
		only[h.GroupID] = true
	}

	participants, err := e.resolveSessions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	job := e.newJob(tenant, ad, StartOptions{MaxRounds: 1})
	job.PostID = postID
	job.onlyGroups = only
	total, err := e.countTargets(ctx, job, participants)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrNoDeliverableGroup
	}
	job.total = int64(total)

	// The retry appends to the original post row. Carry its tallies so the
	// persisted counts accumulate: retried groups leave the failed column
	// and land wherever this run puts them; failures outside the retry's
	// target set stay failed.
	job.baseCompleted = post.CompletedGroups
	job.baseSkipped = post.SkippedGroups
	if remaining := post.FailedGroups - total; remaining > 0 {
		job.baseFailed = remaining
	}

	if err := e.stores.Posts.UpdateStatus(ctx, postID, model.PostInProgress); err != nil {
		return nil, err
	}
	e.registerAndRun(job)
	slog.Info("retry started", "job", job.ID, "post", postID, "groups", total)
	return job, nil
}

func (e *Engine) newJob(tenant *model.Tenant, ad *model.Ad, startOpts StartOptions) *Job {
	content := ad.Content
	if tenant.BrandAdEnabled && tenant.BrandAdText != "" {
		content += "\n\n" + tenant.BrandAdText
	}

	minDelay, maxDelay := e.opts.MinGroupDelay, e.opts.MaxGroupDelay
	if ad.IntervalMin > 0 {
		minDelay = ad.IntervalMin
	}
	if ad.IntervalMax >= minDelay {
		maxDelay = ad.IntervalMax
	} else if maxDelay < minDelay {
		maxDelay = minDelay
	}
	groupCooldown := e.opts.GroupCooldown
	if ad.GroupInterval > 0 {
		groupCooldown = ad.GroupInterval
	}
	maxRounds := e.opts.MaxRounds
	if startOpts.MaxRounds > 0 {
		maxRounds = startOpts.MaxRounds
	}

	var only map[uuid.UUID]bool
	if len(ad.SelectedGroups) > 0 {
		only = make(map[uuid.UUID]bool, len(ad.SelectedGroups))
		for _, id := range ad.SelectedGroups {
			only[id] = true
		}
	}

	return &Job{
		ID:            uuid.Must(uuid.NewV7()),
		TenantID:      tenant.ID,
		PostID:        uuid.Must(uuid.NewV7()),
		Ad:            *ad,
		StartedAt:     e.clock.Now(),
		log:           newLogRing(e.opts.MaxJobLogEntries, e.opts.JobLogTrimTo),
		content:       content,
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		groupCooldown: groupCooldown,
		usePriority:   startOpts.UsePriorityGroups,
		maxRounds:     maxRounds,
	}
}

// resolveSessions loads the tenant's usable sessions and lazily connects
// each one. Sessions that fail to connect are logged and excluded.
func (e *Engine) resolveSessions(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	sessions, err := e.stores.Sessions.ListByTenant(ctx, tenantID, model.SessionActive)
	if err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, s := range sessions {
		if !s.Usable() {
			continue
		}
		if _, err := e.ensureConnected(ctx, s); err != nil {
			slog.Warn("session excluded from posting", "session", s.ID, "error", err)
			continue
		}
		out = append(out, s.ID)
	}
	if len(out) == 0 {
		return nil, ErrNoUsableSession
	}
	return out, nil
}

func (e *Engine) countTargets(ctx context.Context, job *Job, participants []uuid.UUID) (int, error) {
	job.sessionIDs = participants
	total := 0
	now := e.clock.Now()
	for _, sid := range participants {
		groups, err := e.targetGroups(ctx, job, sid, now)
		if err != nil {
			return 0, err
		}
		total += len(groups)
	}
	return total, nil
}

// targetGroups returns the job's deliverable groups of one session.
func (e *Engine) targetGroups(ctx context.Context, job *Job, sessionID uuid.UUID, now time.Time) ([]*model.Group, error) {
	groups, err := e.stores.Groups.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []*model.Group
	for _, g := range groups {
		if !g.Deliverable(now) {
			continue
		}
		if job.usePriority && !g.IsPriority {
			continue
		}
		if job.onlyGroups != nil && !job.onlyGroups[g.ID] {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (e *Engine) registerAndRun(job *Job) {
	runCtx, cancel := context.WithCancel(e.ctx)
	job.mu.Lock()
	job.cancel = cancel
	job.mu.Unlock()

	e.mu.Lock()
	e.jobs[job.ID] = job
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.runJob(runCtx, job)
	}()
}

func (e *Engine) adRunning(tenantID, adID uuid.UUID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, j := range e.jobs {
		if j.TenantID == tenantID && j.Ad.ID == adID && !j.Ended() {
			return true
		}
	}
	return false
}

// StopJob sets the sticky stop flag. Idempotent.
func (e *Engine) StopJob(jobID uuid.UUID) error {
	j, err := e.GetJob(jobID)
	if err != nil {
		return err
	}
	j.RequestStop()
	return nil
}

// PauseJob sets the pause flag. Idempotent.
func (e *Engine) PauseJob(jobID uuid.UUID) error {
	j, err := e.GetJob(jobID)
	if err != nil {
		return err
	}
	j.RequestPause()
	return nil
}

// ResumeJob clears the pause flag. Idempotent.
func (e *Engine) ResumeJob(jobID uuid.UUID) error {
	j, err := e.GetJob(jobID)
	if err != nil {
		return err
	}
	j.RequestResume()
	return nil
}

// GetJob returns the in-memory job.
func (e *Engine) GetJob(jobID uuid.UUID) (*Job, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	j, ok := e.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// GetUserJobs lists the tenant's jobs, newest first.
func (e *Engine) GetUserJobs(tenantID uuid.UUID) []*Job {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Job
	for _, j := range e.jobs {
		if j.TenantID == tenantID {
			out = append(out, j)
		}
	}
	return out
}

// GetJobStats returns a snapshot of the job's counters.
func (e *Engine) GetJobStats(jobID uuid.UUID) (JobStats, error) {
	j, err := e.GetJob(jobID)
	if err != nil {
		return JobStats{}, err
	}
	return j.Stats(), nil
}

// GetJobLogs returns the tail of the job's log ring.
func (e *Engine) GetJobLogs(jobID uuid.UUID, n int) ([]LogEntry, error) {
	j, err := e.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	return j.Logs(n), nil
}

// CleanupJob removes a finished job from the registry.
func (e *Engine) CleanupJob(jobID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if !j.Ended() {
		return ErrJobStillActive
	}
	delete(e.jobs, jobID)
	return nil
}

// ensureConnected returns a live handle for the session, connecting if
// needed.
func (e *Engine) ensureConnected(ctx context.Context, s *model.Session) (platform.Handle, error) {
	e.mu.RLock()
	h, ok := e.handles[s.ID]
	e.mu.RUnlock()
	if ok && e.client.IsConnected(h) {
		return h, nil
	}

	h, err := e.client.Connect(ctx, s)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.handles[s.ID] = h
	e.mu.Unlock()
	return h, nil
}

// dropConnection removes and disconnects the session's handle.
func (e *Engine) dropConnection(ctx context.Context, sessionID uuid.UUID) {
	e.mu.Lock()
	h, ok := e.handles[sessionID]
	delete(e.handles, sessionID)
	e.mu.Unlock()
	if ok {
		if err := e.client.Disconnect(ctx, h); err != nil {
			slog.Warn("disconnect failed", "session", sessionID, "error", err)
		}
	}
}

// handleFor returns the cached handle, if any.
func (e *Engine) handleFor(sessionID uuid.UUID) (platform.Handle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handles[sessionID]
	return h, ok
}
