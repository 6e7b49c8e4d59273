// Package telegram implements platform.SessionClient on the Telegram API
// via telego. One bot handle is kept per connected session; a shared rate
// limiter paces API calls across all sessions so bursts from parallel
// drivers cannot trip the global Bot API limit.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/adrelay/internal/model"
	"github.com/nextlevelbuilder/adrelay/internal/platform"
)

// Options configures the client. Zero values fall back to defaults.
type Options struct {
	ConnectTimeout    time.Duration // default 60s
	SendTimeout       time.Duration // default 30s
	ConnectionRetries int           // default 3
	APICallsPerSecond float64       // default 25
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 60 * time.Second
	}
	if out.SendTimeout <= 0 {
		out.SendTimeout = 30 * time.Second
	}
	if out.ConnectionRetries <= 0 {
		out.ConnectionRetries = 3
	}
	if out.APICallsPerSecond <= 0 {
		out.APICallsPerSecond = 25
	}
	return out
}

// Client implements platform.SessionClient.
type Client struct {
	opts    Options
	limiter *rate.Limiter

	mu      sync.RWMutex
	handles map[uuid.UUID]*handle
}

type handle struct {
	sessionID uuid.UUID
	bot       *telego.Bot
}

func (h *handle) SessionID() string { return h.sessionID.String() }

// New creates a Telegram session client.
func New(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.APICallsPerSecond), 1),
		handles: make(map[uuid.UUID]*handle),
	}
}

// Connect authenticates the session credential and caches the live handle.
// Reconnecting an already connected session returns the existing handle.
func (c *Client) Connect(ctx context.Context, session *model.Session) (platform.Handle, error) {
	c.mu.RLock()
	if h, ok := c.handles[session.ID]; ok {
		c.mu.RUnlock()
		return h, nil
	}
	c.mu.RUnlock()

	if session.SessionString == "" {
		return nil, fmt.Errorf("session %s has no credential", session.ID)
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.ConnectionRetries; attempt++ {
		h, err := c.connectOnce(ctx, session)
		if err == nil {
			c.mu.Lock()
			c.handles[session.ID] = h
			c.mu.Unlock()
			slog.Info("session connected", "session", session.ID, "attempt", attempt)
			return h, nil
		}
		lastErr = err
		if errors.Is(err, platform.ErrAuthRevoked) {
			break // dead credential, retrying cannot help
		}
		slog.Warn("session connect failed", "session", session.ID, "attempt", attempt, "error", err)
		if attempt < c.opts.ConnectionRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
	}
	return nil, lastErr
}

func (c *Client) connectOnce(ctx context.Context, session *model.Session) (*handle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	bot, err := telego.NewBot(session.SessionString)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if _, err := bot.GetMe(ctx); err != nil {
		return nil, decodeError(err)
	}
	return &handle{sessionID: session.ID, bot: bot}, nil
}

// Disconnect drops the cached handle. Safe to call for unknown handles.
func (c *Client) Disconnect(_ context.Context, h platform.Handle) error {
	th, ok := h.(*handle)
	if !ok {
		return nil
	}
	c.mu.Lock()
	delete(c.handles, th.sessionID)
	c.mu.Unlock()
	return nil
}

// IsConnected reports whether the handle is still in the connected set.
func (c *Client) IsConnected(h platform.Handle) bool {
	th, ok := h.(*handle)
	if !ok {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur, ok := c.handles[th.sessionID]
	return ok && cur == th
}

// Send delivers text to one chat on behalf of the handle's session.
func (c *Client) Send(ctx context.Context, h platform.Handle, platformGroupID int64, text string) (platform.SendResult, error) {
	th, ok := h.(*handle)
	if !ok {
		return platform.SendResult{}, fmt.Errorf("foreign handle %T", h)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.SendTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return platform.SendResult{}, err
	}
	msg, err := th.bot.SendMessage(ctx, tu.Message(tu.ID(platformGroupID), text))
	if err != nil {
		return platform.SendResult{}, decodeError(err)
	}
	return platform.SendResult{MessageID: int64(msg.MessageID)}, nil
}

// SyncGroups discovers the chats the session participates in from its
// update feed. The Bot API exposes no dialog listing, so discovery is
// incremental: each sync drains pending updates and snapshots every group
// or channel chat seen there.
func (c *Client) SyncGroups(ctx context.Context, h platform.Handle) ([]platform.GroupSnapshot, error) {
	th, ok := h.(*handle)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T", h)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	updates, err := th.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
		AllowedUpdates: []string{"message", "my_chat_member", "channel_post"},
		Limit:          100,
	})
	if err != nil {
		return nil, decodeError(err)
	}

	seen := make(map[int64]bool)
	var out []platform.GroupSnapshot
	for _, u := range updates {
		chat := chatOf(u)
		if chat == nil || seen[chat.ID] {
			continue
		}
		kind, ok := groupKind(chat.Type)
		if !ok {
			continue
		}
		seen[chat.ID] = true

		members := 0
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if n, err := th.bot.GetChatMemberCount(ctx, &telego.GetChatMemberCountParams{ChatID: tu.ID(chat.ID)}); err == nil && n != nil {
			members = *n
		}

		out = append(out, platform.GroupSnapshot{
			PlatformID:  chat.ID,
			Title:       chat.Title,
			Kind:        kind,
			MemberCount: members,
			Username:    chat.Username,
		})
	}
	return out, nil
}

func chatOf(u telego.Update) *telego.Chat {
	switch {
	case u.Message != nil:
		return &u.Message.Chat
	case u.ChannelPost != nil:
		return &u.ChannelPost.Chat
	case u.MyChatMember != nil:
		return &u.MyChatMember.Chat
	}
	return nil
}

func groupKind(chatType string) (model.GroupKind, bool) {
	switch chatType {
	case telego.ChatTypeGroup:
		return model.KindGroup, true
	case telego.ChatTypeSupergroup:
		return model.KindSupergroup, true
	case telego.ChatTypeChannel:
		return model.KindChannel, true
	}
	return "", false
}
