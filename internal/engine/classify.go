package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/platform"
)

// floodInlineLimit is the largest flood wait a driver absorbs inline.
// Anything longer arms the session cooldown instead of blocking a lane.
const floodInlineLimit = 60

// outcome is the classified result of one send attempt.
type outcome struct {
	status     model.DeliveryStatus
	reason     string
	inlineWait time.Duration
}

// applySendOutcome maps the raw send result onto the error taxonomy and
// applies its side effects: rate-state transitions, group restriction
// flags, session freezing, history rows, counters, log entries. Errors
// never abort the round; the driver just moves on.
func (e *Engine) applySendOutcome(ctx context.Context, job *Job, sess *model.Session, grp *model.Group, rs *RateState, res platform.SendResult, sendErr error) outcome {
	now := e.clock.Now()

	if sendErr == nil {
		if _, armed := rs.Success(now, e.opts.SessionMessageLimit, e.opts.SessionCooldown); armed {
			job.logInfo(sess.ID, uuid.Nil, "", "session message limit reached, cooling down", now)
		}
		if err := e.stores.Groups.SetLastPost(ctx, grp.ID, now); err != nil {
			slog.Warn("lastPostAt update failed", "group", grp.ID, "error", err)
		}
		e.recordAttempt(ctx, job, sess.ID, grp, model.DeliverySent, "", res.MessageID, now)
		return outcome{status: model.DeliverySent}
	}

	var flood *platform.FloodWaitError
	var slow *platform.SlowmodeWaitError

	switch {
	case errors.As(sendErr, &flood):
		inline := rs.Flood(now, flood.Seconds, floodInlineLimit, e.opts.MaxFloodPerSession, e.opts.FloodFreeze)
		reason := fmt.Sprintf("FLOOD_WAIT %d", flood.Seconds)
		e.recordAttempt(ctx, job, sess.ID, grp, model.DeliveryFailed, reason, 0, now)
		out := outcome{status: model.DeliveryFailed, reason: reason}
		if inline {
			out.inlineWait = time.Duration(flood.Seconds) * time.Second
		}
		return out

	case errors.As(sendErr, &slow):
		// Per-chat throttle: restrict the group, leave the session alone.
		reason := fmt.Sprintf("slowmode %d", slow.Seconds)
		until := now.Add(time.Duration(slow.Seconds) * time.Second)
		if err := e.stores.Groups.MarkRestricted(ctx, grp.ID, reason, &until, false); err != nil {
			slog.Warn("group restriction update failed", "group", grp.ID, "error", err)
		}
		e.recordAttempt(ctx, job, sess.ID, grp, model.DeliverySkipped, reason, 0, now)
		return outcome{status: model.DeliverySkipped, reason: reason}

	case errors.Is(sendErr, platform.ErrWriteForbidden):
		e.restrictPermanently(ctx, job, sess.ID, grp, "write forbidden", now)
		return outcome{status: model.DeliverySkipped, reason: "write forbidden"}

	case errors.Is(sendErr, platform.ErrChatRestricted), errors.Is(sendErr, platform.ErrPremiumRequired):
		e.restrictPermanently(ctx, job, sess.ID, grp, "chat restricted", now)
		return outcome{status: model.DeliverySkipped, reason: "chat restricted"}

	case errors.Is(sendErr, platform.ErrAuthRevoked):
		// Dead credential. Ban and freeze the session, park its rate
		// entry forever, and drop the connection so nothing reuses it.
		banned := model.SessionBanned
		if err := e.stores.Sessions.SetFrozen(ctx, sess.ID, now, &banned); err != nil {
			slog.Error("session ban failed", "session", sess.ID, "error", err)
		}
		rs.Arm(now.Add(permanentCooldown))
		e.dropConnection(ctx, sess.ID)
		e.recordAttempt(ctx, job, sess.ID, grp, model.DeliveryFailed, "session dead", 0, now)
		slog.Warn("session auth revoked", "session", sess.ID, "job", job.ID)
		return outcome{status: model.DeliveryFailed, reason: "session dead"}

	default:
		rs.Transient(now, e.opts.MaxConsecutiveErrors, e.opts.SessionCooldown)
		e.recordAttempt(ctx, job, sess.ID, grp, model.DeliveryFailed, sendErr.Error(), 0, now)
		return outcome{status: model.DeliveryFailed, reason: sendErr.Error()}
	}
}

func (e *Engine) restrictPermanently(ctx context.Context, job *Job, sessionID uuid.UUID, grp *model.Group, reason string, now time.Time) {
	if err := e.stores.Groups.MarkRestricted(ctx, grp.ID, reason, nil, true); err != nil {
		slog.Warn("group restriction update failed", "group", grp.ID, "error", err)
	}
	e.recordAttempt(ctx, job, sessionID, grp, model.DeliverySkipped, reason, 0, now)
}

// record writes a skip decided before any send was attempted.
func (e *Engine) record(ctx context.Context, job *Job, sessionID uuid.UUID, grp *model.Group, status model.DeliveryStatus, reason string, msgID int64) {
	e.recordAttempt(ctx, job, sessionID, grp, status, reason, msgID, e.clock.Now())
}

// recordAttempt bumps the job counters, appends the history row and the
// log entry for one (post, group) attempt.
func (e *Engine) recordAttempt(ctx context.Context, job *Job, sessionID uuid.UUID, grp *model.Group, status model.DeliveryStatus, reason string, msgID int64, now time.Time) {
	h := &model.PostHistory{
		PostID:            job.PostID,
		GroupID:           grp.ID,
		Status:            status,
		PlatformMessageID: msgID,
		Error:             reason,
	}
	switch status {
	case model.DeliverySent:
		job.posted.Add(1)
		t := now
		h.SentAt = &t
		job.logInfo(sessionID, grp.ID, grp.Title, "sent", now)
	case model.DeliveryFailed:
		job.failed.Add(1)
		t := now
		h.FailedAt = &t
		job.logError(sessionID, grp.ID, grp.Title, "failed: "+reason, now)
	case model.DeliverySkipped:
		job.skipped.Add(1)
		job.logWarn(sessionID, grp.ID, grp.Title, "skipped: "+reason, now)
	}
	if err := e.stores.Posts.AddHistory(ctx, h); err != nil {
		slog.Warn("history insert failed", "post", job.PostID, "group", grp.ID, "error", err)
	}
}
