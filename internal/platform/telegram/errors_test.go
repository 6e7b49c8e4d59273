package telegram

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mymmrac/telego/telegoapi"

	"github.com/nextlevelbuilder/adrelay/internal/platform"
)

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{
			name: "flood wait code",
			in:   &telegoapi.Error{ErrorCode: 420, Description: "FLOOD_WAIT_37"},
			want: &platform.FloodWaitError{Seconds: 37},
		},
		{
			name: "slowmode wait code",
			in:   &telegoapi.Error{ErrorCode: 420, Description: "SLOWMODE_WAIT_25"},
			want: &platform.SlowmodeWaitError{Seconds: 25},
		},
		{
			name: "retry_after parameter",
			in: &telegoapi.Error{
				ErrorCode:   429,
				Description: "Too Many Requests: retry later",
				Parameters:  &telegoapi.ResponseParameters{RetryAfter: 12},
			},
			want: &platform.FloodWaitError{Seconds: 12},
		},
		{
			name: "429 without retry_after",
			in:   &telegoapi.Error{ErrorCode: 429, Description: "Too Many Requests"},
			want: &platform.FloodWaitError{Seconds: 60},
		},
		{
			name: "unauthorized",
			in:   &telegoapi.Error{ErrorCode: 401, Description: "Unauthorized"},
			want: platform.ErrAuthRevoked,
		},
		{
			name: "auth key unregistered",
			in:   &telegoapi.Error{ErrorCode: 400, Description: "AUTH_KEY_UNREGISTERED"},
			want: platform.ErrAuthRevoked,
		},
		{
			name: "session revoked",
			in:   &telegoapi.Error{ErrorCode: 400, Description: "SESSION_REVOKED"},
			want: platform.ErrAuthRevoked,
		},
		{
			name: "write forbidden",
			in:   &telegoapi.Error{ErrorCode: 400, Description: "Bad Request: CHAT_WRITE_FORBIDDEN"},
			want: platform.ErrWriteForbidden,
		},
		{
			name: "kicked from chat",
			in:   &telegoapi.Error{ErrorCode: 403, Description: "Forbidden: bot was kicked from the supergroup chat"},
			want: platform.ErrWriteForbidden,
		},
		{
			name: "chat restricted",
			in:   &telegoapi.Error{ErrorCode: 400, Description: "Bad Request: CHAT_RESTRICTED"},
			want: platform.ErrChatRestricted,
		},
		{
			name: "plain messages forbidden",
			in:   &telegoapi.Error{ErrorCode: 400, Description: "CHAT_SEND_PLAIN_FORBIDDEN"},
			want: platform.ErrChatRestricted,
		},
		{
			name: "premium required",
			in:   &telegoapi.Error{ErrorCode: 400, Description: "PREMIUM_ACCOUNT_REQUIRED"},
			want: platform.ErrPremiumRequired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeError(tt.in)

			switch want := tt.want.(type) {
			case *platform.FloodWaitError:
				var flood *platform.FloodWaitError
				if !errors.As(got, &flood) || flood.Seconds != want.Seconds {
					t.Errorf("decodeError = %v, want flood wait %d", got, want.Seconds)
				}
			case *platform.SlowmodeWaitError:
				var slow *platform.SlowmodeWaitError
				if !errors.As(got, &slow) || slow.Seconds != want.Seconds {
					t.Errorf("decodeError = %v, want slowmode wait %d", got, want.Seconds)
				}
			default:
				if !errors.Is(got, tt.want) {
					t.Errorf("decodeError = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// Classification and matching both go through errors.As/Is, so a dead
// credential is recognised even when the api error arrives wrapped.
func TestDecodeErrorWrapped(t *testing.T) {
	in := fmt.Errorf("get me: %w", &telegoapi.Error{ErrorCode: 401, Description: "Unauthorized"})
	got := decodeError(in)
	if !errors.Is(got, platform.ErrAuthRevoked) {
		t.Errorf("decodeError = %v, want auth revoked", got)
	}
	if !errors.Is(fmt.Errorf("connect: %w", got), platform.ErrAuthRevoked) {
		t.Error("wrapping the decoded error must not break auth-revoked matching")
	}
}

func TestDecodeErrorPassthrough(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if got := decodeError(nil); got != nil {
			t.Errorf("decodeError(nil) = %v", got)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		in := fmt.Errorf("dial tcp: connection refused")
		if got := decodeError(in); got != in {
			t.Errorf("decodeError = %v, want the input unchanged", got)
		}
	})

	t.Run("unrecognised api error", func(t *testing.T) {
		in := &telegoapi.Error{ErrorCode: 400, Description: "Bad Request: message is too long"}
		got := decodeError(in)
		var apiErr *telegoapi.Error
		if !errors.As(got, &apiErr) {
			t.Errorf("decodeError = %v, want the api error passed through", got)
		}
	})
}
