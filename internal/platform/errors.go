package platform

import (
	"errors"
	"fmt"
)

// Sentinel errors for permanent per-group and per-session conditions.
var (
	// ErrWriteForbidden: the account may not write to this chat (banned
	// in chat, channel went private, or posting rights revoked).
	ErrWriteForbidden = errors.New("platform: write forbidden")

	// ErrChatRestricted: the chat rejects plain sends from this account.
	ErrChatRestricted = errors.New("platform: chat restricted")

	// ErrPremiumRequired: the chat only accepts messages from premium
	// accounts.
	ErrPremiumRequired = errors.New("platform: premium account required")

	// ErrAuthRevoked: the session credential is dead. The session must
	// not be reused.
	ErrAuthRevoked = errors.New("platform: authorization revoked")
)

// FloodWaitError is the platform's per-account throttle: wait Seconds
// before sending again on this session.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("platform: flood wait %ds", e.Seconds)
}

// SlowmodeWaitError is the per-chat throttle: wait Seconds before sending
// again in this chat. Session state is unaffected.
type SlowmodeWaitError struct {
	Seconds int
}

func (e *SlowmodeWaitError) Error() string {
	return fmt.Sprintf("platform: slowmode wait %ds", e.Seconds)
}
