package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/platform"
)

// runJob is the round loop of one job: round, inter-round pause, round,
// until stopped or out of rounds. Broadcasting is continuous by design;
// the domain wants sustained presence in groups, so only the tenant (or
// a round cap) ends a job.
func (e *Engine) runJob(ctx context.Context, job *Job) {
	for {
		if job.StopRequested() {
			e.finishJob(ctx, job, JobStopped)
			return
		}
		if job.PauseRequested() {
			if e.clock.Sleep(ctx, e.opts.PausePollInterval) != nil {
				e.finishJob(ctx, job, JobStopped)
				return
			}
			continue
		}

		ran, err := e.runRound(ctx, job)
		if err != nil {
			// Round resolution failed (repository unavailable). The job
			// never fails outward; log and retry after the pause.
			slog.Error("round aborted", "job", job.ID, "error", err)
			job.logError(uuid.Nil, uuid.Nil, "", "round aborted: "+err.Error(), e.clock.Now())
		} else if !ran {
			// Nothing deliverable remains anywhere: the broadcast is done.
			slog.Info("no deliverable groups remain, completing job", "job", job.ID,
				"rounds", job.rounds.Load())
			job.logInfo(uuid.Nil, uuid.Nil, "", "no deliverable groups remain", e.clock.Now())
			e.finishJob(ctx, job, JobCompleted)
			return
		} else {
			job.rounds.Add(1)
			e.persistCounts(ctx, job)
		}

		if job.StopRequested() {
			e.finishJob(ctx, job, JobStopped)
			return
		}
		if job.maxRounds > 0 && int(job.rounds.Load()) >= job.maxRounds {
			e.finishJob(ctx, job, JobCompleted)
			return
		}

		if !e.interRoundPause(ctx, job) {
			e.finishJob(ctx, job, JobStopped)
			return
		}
	}
}

// runRound executes one pass: resolve each participating session's
// deliverable groups, shuffle, and run one driver per session in
// parallel. Returns false when no session had anything to deliver; the
// caller treats that as completion rather than spinning forever on a
// job whose sessions are all frozen or whose groups are all restricted.
func (e *Engine) runRound(ctx context.Context, job *Job) (bool, error) {
	now := e.clock.Now()
	type lane struct {
		sess   *model.Session
		groups []*model.Group
	}
	var lanes []lane
	for _, sid := range job.sessionIDs {
		sess, err := e.stores.Sessions.GetByID(ctx, sid)
		if err != nil {
			return false, err
		}
		if !sess.Usable() {
			continue
		}
		groups, err := e.targetGroups(ctx, job, sid, now)
		if err != nil {
			return false, err
		}
		if len(groups) == 0 {
			continue
		}
		// Fresh random order per round so a flood never starves the
		// same tail of groups every time.
		rand.Shuffle(len(groups), func(i, j int) {
			groups[i], groups[j] = groups[j], groups[i]
		})
		lanes = append(lanes, lane{sess: sess, groups: groups})
	}
	if len(lanes) == 0 {
		return false, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ln := range lanes {
		g.Go(func() error {
			h, ok := e.handleFor(ln.sess.ID)
			if !ok {
				job.logWarn(ln.sess.ID, uuid.Nil, "", "session not connected, lane skipped", e.clock.Now())
				return nil
			}
			sent := e.runDriver(gctx, job, ln.sess, h, ln.groups)
			slog.Debug("driver finished", "job", job.ID, "session", ln.sess.ID, "sent", sent)
			return nil
		})
	}
	_ = g.Wait()
	return true, nil
}

// runDriver delivers the session's shuffled group sublist strictly
// serially. Platform rate limits are per account, so lanes of different
// sessions run in parallel while sends within one session stay spaced.
func (e *Engine) runDriver(ctx context.Context, job *Job, sess *model.Session, h platform.Handle, groups []*model.Group) int {
	rs := e.rates.Get(sess.ID)
	sent := 0
	for i, grp := range groups {
		if job.StopRequested() {
			return sent
		}
		for job.PauseRequested() && !job.StopRequested() {
			if e.clock.Sleep(ctx, e.opts.StopPollInterval) != nil {
				return sent
			}
		}
		if job.StopRequested() {
			return sent
		}

		now := e.clock.Now()
		if grp.LastPostAt != nil && now.Sub(*grp.LastPostAt) < job.groupCooldown {
			e.record(ctx, job, sess.ID, grp, model.DeliverySkipped, "group cooldown", 0)
			continue
		}
		if rs.InCooldown(now) {
			e.record(ctx, job, sess.ID, grp, model.DeliverySkipped, "session cooldown", 0)
			continue
		}

		res, err := e.client.Send(ctx, h, grp.PlatformID, job.content)
		out := e.applySendOutcome(ctx, job, sess, grp, rs, res, err)
		if out.status == model.DeliverySent {
			sent++
		}
		if out.inlineWait > 0 {
			if e.clock.Sleep(ctx, out.inlineWait) != nil {
				return sent
			}
		}

		if i == len(groups)-1 {
			break
		}
		if e.clock.Sleep(ctx, e.interGroupDelay(job, sent)) != nil {
			return sent
		}
	}
	return sent
}

// interGroupDelay draws the pause before the next send of a driver.
// Every LongPauseInterval-th delivered message earns the longer break.
func (e *Engine) interGroupDelay(job *Job, sent int) time.Duration {
	if sent > 0 && sent%e.opts.LongPauseInterval == 0 {
		return uniformDuration(e.opts.LongPauseMin, e.opts.LongPauseMax)
	}
	return uniformDuration(job.minDelay, job.maxDelay)
}

// interRoundPause waits the jittered round pause, polling the stop flag
// every StopPollInterval so shutdown latency stays bounded. Returns
// false when a stop was requested.
func (e *Engine) interRoundPause(ctx context.Context, job *Job) bool {
	lo := e.opts.RoundPause - e.opts.RoundPauseJitter
	hi := e.opts.RoundPause + e.opts.RoundPauseJitter
	if lo < 0 {
		lo = 0
	}
	total := uniformDuration(lo, hi)

	deadline := e.clock.Now().Add(total)
	for {
		if job.StopRequested() {
			return false
		}
		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			return true
		}
		step := e.opts.StopPollInterval
		if remaining < step {
			step = remaining
		}
		if e.clock.Sleep(ctx, step) != nil {
			return false
		}
	}
}

func (e *Engine) finishJob(ctx context.Context, job *Job, status JobStatus) {
	now := e.clock.Now()
	job.finish(status, now)
	e.persistCounts(ctx, job)

	postStatus := model.PostCompleted
	if status == JobStopped {
		postStatus = model.PostCancelled
	}
	if err := e.stores.Posts.UpdateStatus(ctx, job.PostID, postStatus); err != nil {
		slog.Warn("post status update failed", "post", job.PostID, "error", err)
	}
	job.logInfo(uuid.Nil, uuid.Nil, "", "job "+string(status), now)
	slog.Info("job finished", "job", job.ID, "status", status,
		"posted", job.posted.Load(), "failed", job.failed.Load(),
		"skipped", job.skipped.Load(), "rounds", job.rounds.Load())
}

func (e *Engine) persistCounts(ctx context.Context, job *Job) {
	err := e.stores.Posts.UpdateCounts(ctx, job.PostID,
		job.baseCompleted+int(job.posted.Load()),
		job.baseFailed+int(job.failed.Load()),
		job.baseSkipped+int(job.skipped.Load()))
	if err != nil {
		slog.Warn("post counts update failed", "post", job.PostID, "error", err)
	}
}

// uniformDuration draws uniformly from [min, max].
func uniformDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}
