package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
)

// JobStatus is the runtime state of an in-memory job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobStopped   JobStatus = "stopped"
	JobCompleted JobStatus = "completed"
)

// Job is the in-memory state of one running broadcast. It is created by
// StartPosting, mutated by the engine's round loop and drivers, flipped
// by the control operations, and removed by CleanupJob. Jobs do not
// survive a process restart; the persisted Post row is the durable record.
type Job struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	PostID   uuid.UUID
	Ad       model.Ad // snapshot taken at start

	StartedAt time.Time

	// Control flags. Stop is sticky: once set it is never cleared.
	stopRequested  atomic.Bool
	pauseRequested atomic.Bool

	posted  atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
	total   int64 // fixed at start
	rounds  atomic.Int64

	// Carried-over tallies of the post row a retry appends to. Zero for a
	// fresh job; persisted counts are base + this job's own counters so a
	// retry never erases the original run from the durable record.
	baseCompleted int
	baseFailed    int
	baseSkipped   int

	log *logRing

	// Effective parameters resolved at start from options, ad knobs and
	// tenant branding.
	content       string
	minDelay      time.Duration
	maxDelay      time.Duration
	groupCooldown time.Duration
	usePriority   bool
	maxRounds     int
	sessionIDs    []uuid.UUID
	onlyGroups    map[uuid.UUID]bool // non-nil restricts the target set

	mu      sync.Mutex
	endedAt time.Time
	final   JobStatus // set once the round loop exits
	cancel  func()    // wakes blocking sends on stop
}

// JobStats is a read-only snapshot of a job's progress.
type JobStats struct {
	JobID           uuid.UUID `json:"jobId"`
	TenantID        uuid.UUID `json:"tenantId"`
	AdID            uuid.UUID `json:"adId"`
	PostID          uuid.UUID `json:"postId"`
	Status          JobStatus `json:"status"`
	PostedGroups    int       `json:"postedGroups"`
	FailedGroups    int       `json:"failedGroups"`
	SkippedGroups   int       `json:"skippedGroups"`
	TotalGroups     int       `json:"totalGroups"`
	RoundsCompleted int       `json:"roundsCompleted"`
	SuccessRate     float64   `json:"successRate"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt,omitempty"`
}

// RequestStop sets the sticky stop flag.
func (j *Job) RequestStop() {
	j.stopRequested.Store(true)
	j.mu.Lock()
	if j.cancel != nil {
		j.cancel()
	}
	j.mu.Unlock()
}

// RequestPause sets the pause flag. No-op on a stopped job.
func (j *Job) RequestPause() { j.pauseRequested.Store(true) }

// RequestResume clears the pause flag.
func (j *Job) RequestResume() { j.pauseRequested.Store(false) }

// StopRequested reports the sticky stop flag.
func (j *Job) StopRequested() bool { return j.stopRequested.Load() }

// PauseRequested reports the pause flag.
func (j *Job) PauseRequested() bool { return j.pauseRequested.Load() }

// Status derives the externally visible state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.final != "" {
		return j.final
	}
	if j.pauseRequested.Load() {
		return JobPaused
	}
	return JobRunning
}

// Ended reports whether the round loop has exited.
func (j *Job) Ended() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.final != ""
}

func (j *Job) finish(status JobStatus, at time.Time) {
	j.mu.Lock()
	if j.final == "" {
		j.final = status
		j.endedAt = at
	}
	j.mu.Unlock()
}

// Stats returns a snapshot of the job's counters.
func (j *Job) Stats() JobStats {
	posted := int(j.posted.Load())
	failed := int(j.failed.Load())
	skipped := int(j.skipped.Load())

	rate := 0.0
	if attempts := posted + failed; attempts > 0 {
		rate = float64(posted) / float64(attempts)
	}

	j.mu.Lock()
	endedAt := j.endedAt
	j.mu.Unlock()

	return JobStats{
		JobID:           j.ID,
		TenantID:        j.TenantID,
		AdID:            j.Ad.ID,
		PostID:          j.PostID,
		Status:          j.Status(),
		PostedGroups:    posted,
		FailedGroups:    failed,
		SkippedGroups:   skipped,
		TotalGroups:     int(j.total),
		RoundsCompleted: int(j.rounds.Load()),
		SuccessRate:     rate,
		StartedAt:       j.StartedAt,
		EndedAt:         endedAt,
	}
}

// Logs returns the last n log entries (all when n <= 0).
func (j *Job) Logs(n int) []LogEntry { return j.log.tail(n) }

func (j *Job) logInfo(sessionID, groupID uuid.UUID, group, msg string, at time.Time) {
	j.log.append(LogEntry{Time: at, Level: "info", SessionID: sessionID, GroupID: groupID, Group: group, Message: msg})
}

func (j *Job) logWarn(sessionID, groupID uuid.UUID, group, msg string, at time.Time) {
	j.log.append(LogEntry{Time: at, Level: "warn", SessionID: sessionID, GroupID: groupID, Group: group, Message: msg})
}

func (j *Job) logError(sessionID, groupID uuid.UUID, group, msg string, at time.Time) {
	j.log.append(LogEntry{Time: at, Level: "error", SessionID: sessionID, GroupID: groupID, Group: group, Message: msg})
}
