package logger

import "strings"

// enum is a closed set of lowercase values for one log key.
type enum map[string]struct{}

func newEnum(values ...string) enum {
	e := make(enum, len(values))
	for _, v := range values {
		e[v] = struct{}{}
	}
	return e
}

func (e enum) normalize(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	_, ok := e[v]
	return v, ok && v != ""
}

var (
	statuses = newEnum("ok", "fail", "skip", "retry", "rate_limited", "cancelled")
	outcomes = newEnum("ok", "fail", "cancelled", "rate_limited")
)

// levelName maps slog level strings, including offsets such as
// "ERROR+4", onto the names written to the log.
func levelName(level string) string {
	switch l := strings.ToUpper(level); {
	case l == "":
		return "INFO"
	case l == "WARNING":
		return "WARN"
	case strings.HasPrefix(l, "ERROR+"):
		return "FATAL"
	default:
		return l
	}
}

// defaultKeyOrder puts correlation first, then the update, then the
// domain and error details. Other keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "update_id", "user_id", "chat_id", "chat_type",
	"handler", "cb_key", "outcome", "duration_ms", "messages", "kb",
	"payload", "lang", "username",
	"mode", "listen", "public_url", "driver", "db",
	"platform_user_id", "step", "interest", "region",
	"broadcast_id", "recipients", "delivered", "failed", "deactivated", "workers",
	"sessions", "evicted",
	"err", "err_code", "retryable", "attempts", "backoff_ms",
}
