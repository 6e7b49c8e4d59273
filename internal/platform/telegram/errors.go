package telegram

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mymmrac/telego/telegoapi"

	"github.com/nextlevelbuilder/adrelay/internal/platform"
)

// decodeError maps a raw Telegram error onto the platform taxonomy. Both
// Bot API responses (numeric codes, retry_after parameters) and
// MTProto-style text codes (FLOOD_WAIT_N, SLOWMODE_WAIT_N, ...) are
// recognised; anything unrecognised passes through as transient.
func decodeError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		desc := apiErr.Description
		upper := strings.ToUpper(desc)

		if n, ok := waitSeconds(upper, "SLOWMODE_WAIT_"); ok {
			return &platform.SlowmodeWaitError{Seconds: n}
		}
		if n, ok := waitSeconds(upper, "FLOOD_WAIT_"); ok {
			return &platform.FloodWaitError{Seconds: n}
		}
		if apiErr.Parameters != nil && apiErr.Parameters.RetryAfter > 0 {
			return &platform.FloodWaitError{Seconds: apiErr.Parameters.RetryAfter}
		}

		switch {
		case apiErr.ErrorCode == 429:
			// Too Many Requests without retry_after: assume a minute.
			return &platform.FloodWaitError{Seconds: 60}
		case apiErr.ErrorCode == 401,
			strings.Contains(upper, "AUTH_KEY_UNREGISTERED"),
			strings.Contains(upper, "SESSION_REVOKED"),
			strings.Contains(upper, "USER_DEACTIVATED"):
			return platform.ErrAuthRevoked
		case strings.Contains(upper, "PREMIUM_ACCOUNT_REQUIRED"):
			return platform.ErrPremiumRequired
		case strings.Contains(upper, "CHAT_WRITE_FORBIDDEN"),
			strings.Contains(upper, "USER_BANNED_IN_CHANNEL"),
			strings.Contains(upper, "CHANNEL_PRIVATE"),
			strings.Contains(upper, "BOT WAS KICKED"),
			strings.Contains(upper, "NOT A MEMBER"):
			return platform.ErrWriteForbidden
		case strings.Contains(upper, "CHAT_RESTRICTED"),
			strings.Contains(upper, "CHAT_SEND_PLAIN_FORBIDDEN"),
			strings.Contains(upper, "NOT ENOUGH RIGHTS"):
			return platform.ErrChatRestricted
		}
	}
	return err
}

// waitSeconds extracts N from codes shaped like PREFIX_N.
func waitSeconds(desc, prefix string) (int, bool) {
	idx := strings.Index(desc, prefix)
	if idx < 0 {
		return 0, false
	}
	rest := desc[idx+len(prefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
