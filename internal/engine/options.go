package engine

import "time"

// Options are the anti-throttle knobs and engine limits. The defaults are
// the conservative variant; ads may override the per-group delay window
// and group cooldown through their own interval fields.
type Options struct {
	// Inter-group delay window within one session driver.
	MinGroupDelay time.Duration
	MaxGroupDelay time.Duration

	// Pause between rounds, with uniform jitter around RoundPause.
	RoundPause       time.Duration
	RoundPauseJitter time.Duration

	// Messages a session may send before a cooldown is armed.
	SessionMessageLimit int
	SessionCooldown     time.Duration

	// Flood handling: after MaxFloodPerSession flood signals the session
	// is frozen for FloodFreeze.
	MaxFloodPerSession int
	FloodFreeze        time.Duration

	// Consecutive transient errors before a defensive cooldown.
	MaxConsecutiveErrors int

	// Minimum spacing between two posts into the same group.
	GroupCooldown time.Duration

	// Every LongPauseInterval-th message a driver takes a longer break.
	LongPauseInterval int
	LongPauseMin      time.Duration
	LongPauseMax      time.Duration

	// Job log ring: trimmed to JobLogTrimTo once it exceeds MaxJobLogEntries.
	MaxJobLogEntries int
	JobLogTrimTo     int

	// Top-N groups marked as priority by the maintenance recompute.
	PriorityTopN int

	// Poll intervals for the stop/pause control flags.
	StopPollInterval  time.Duration
	PausePollInterval time.Duration

	// MaxRounds caps the number of rounds a job runs (0 = until stopped).
	MaxRounds int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MinGroupDelay:        5 * time.Second,
		MaxGroupDelay:        20 * time.Second,
		RoundPause:           15 * time.Minute,
		RoundPauseJitter:     3 * time.Minute,
		SessionMessageLimit:  30,
		SessionCooldown:      5 * time.Minute,
		MaxFloodPerSession:   3,
		FloodFreeze:          30 * time.Minute,
		MaxConsecutiveErrors: 5,
		GroupCooldown:        10 * time.Minute,
		LongPauseInterval:    10,
		LongPauseMin:         30 * time.Second,
		LongPauseMax:         90 * time.Second,
		MaxJobLogEntries:     500,
		JobLogTrimTo:         300,
		PriorityTopN:         50,
		StopPollInterval:     2 * time.Second,
		PausePollInterval:    5 * time.Second,
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.MinGroupDelay <= 0 {
		o.MinGroupDelay = d.MinGroupDelay
	}
	if o.MaxGroupDelay < o.MinGroupDelay {
		o.MaxGroupDelay = o.MinGroupDelay
	}
	if o.RoundPause <= 0 {
		o.RoundPause = d.RoundPause
	}
	if o.SessionMessageLimit <= 0 {
		o.SessionMessageLimit = d.SessionMessageLimit
	}
	if o.SessionCooldown <= 0 {
		o.SessionCooldown = d.SessionCooldown
	}
	if o.MaxFloodPerSession <= 0 {
		o.MaxFloodPerSession = d.MaxFloodPerSession
	}
	if o.FloodFreeze <= 0 {
		o.FloodFreeze = d.FloodFreeze
	}
	if o.MaxConsecutiveErrors <= 0 {
		o.MaxConsecutiveErrors = d.MaxConsecutiveErrors
	}
	if o.GroupCooldown <= 0 {
		o.GroupCooldown = d.GroupCooldown
	}
	if o.LongPauseInterval <= 0 {
		o.LongPauseInterval = d.LongPauseInterval
	}
	if o.LongPauseMin <= 0 {
		o.LongPauseMin = d.LongPauseMin
	}
	if o.LongPauseMax < o.LongPauseMin {
		o.LongPauseMax = o.LongPauseMin
	}
	if o.MaxJobLogEntries < 300 {
		o.MaxJobLogEntries = d.MaxJobLogEntries
	}
	if o.JobLogTrimTo <= 0 || o.JobLogTrimTo > o.MaxJobLogEntries {
		o.JobLogTrimTo = d.JobLogTrimTo
	}
	if o.PriorityTopN <= 0 {
		o.PriorityTopN = d.PriorityTopN
	}
	if o.StopPollInterval <= 0 {
		o.StopPollInterval = d.StopPollInterval
	}
	if o.PausePollInterval <= 0 {
		o.PausePollInterval = d.PausePollInterval
	}
}
