// Package platform is the sole dependency on the messaging platform. The
// engine talks to a SessionClient and classifies the typed errors it
// returns; only the concrete implementation knows the wire dialect.
package platform

import (
	"context"

	"github.com/nextlevelbuilder/adrelay/internal/model"
)

// GroupSnapshot is one chat as reported by the platform during a sync.
type GroupSnapshot struct {
	PlatformID  int64
	Title       string
	Kind        model.GroupKind
	MemberCount int
	Username    string
}

// SendResult carries the platform message id of a successful send.
type SendResult struct {
	MessageID int64
}

// Handle is an opaque reference to one live, authenticated connection.
type Handle interface {
	// SessionID identifies the session this handle belongs to.
	SessionID() string
}

// SessionClient connects impersonated sessions and sends on their behalf.
// Errors returned by Send are one of the typed errors in this package or
// a transient error; the engine's classifier relies on that contract.
type SessionClient interface {
	Connect(ctx context.Context, session *model.Session) (Handle, error)
	Disconnect(ctx context.Context, h Handle) error
	SyncGroups(ctx context.Context, h Handle) ([]GroupSnapshot, error)
	Send(ctx context.Context, h Handle, platformGroupID int64, text string) (SendResult, error)
	IsConnected(h Handle) bool
}
