package log

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

// secretNames are attribute keys, header names and query parameter names
// whose value is always masked. Matching is case-insensitive.
//
// The bare "session" is absent: it names a crawl session throughout spidey.
var secretNames = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"password":            true,
	"passwd":              true,
	"pwd":                 true,
	"secret":              true,
	"token":               true,
	"access_token":        true,
	"refresh_token":       true,
	"id_token":            true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"client_secret":       true,
	"signature":           true,
	"sig":                 true,
	"session_id":          true,
	"sessionid":           true,
	"sid":                 true,
	"jsessionid":          true,
	"phpsessid":           true,
	"auth":                true,
}

// secretFragments mark a key as secret when it contains one of them, so
// "site_cookie" or "x_auth_header" are masked too. "key" alone is left out;
// it matches far too many harmless names.
var secretFragments = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private", "cookie",
}

// secretValues match values that are credentials whatever their key.
var secretValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^(bearer|basic|digest)\s+\S+`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
	regexp.MustCompile(`(?i)(^|;\s*)(session|sess|sid|phpsessid|jsessionid)[a-z_]*=`),
}

// SecureHandler masks credentials before records reach the wrapped handler.
//
// Crawls carry per-site cookies and headers, and seeds or discovered links
// may embed passwords in the userinfo or tokens in the query. Values under
// a secret key are replaced by MaskValue; URLs keep their shape with only
// the secret parts masked.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs masks attrs before attaching them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = redactAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(masked)}
}

// WithGroup delegates to the wrapped handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}

	case slog.KindString:
		if isSecretKey(a.Key) {
			return slog.String(a.Key, MaskValue)
		}
		v := a.Value.String()
		if isSecretValue(v) {
			return slog.String(a.Key, MaskValue)
		}
		if u, ok := redactURL(v); ok {
			return slog.String(a.Key, u)
		}
		return a

	default:
		if isSecretKey(a.Key) {
			return slog.String(a.Key, MaskValue)
		}
		return a
	}
}

// isSecretKey reports whether values logged under key must be masked.
func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	if secretNames[key] {
		return true
	}
	for _, fragment := range secretFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

// isSecretValue reports whether value looks like a credential.
func isSecretValue(value string) bool {
	for _, re := range secretValues {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// redactURL masks the userinfo password and secret query parameters of an
// absolute URL. It reports false when s is not a URL or holds no secret.
func redactURL(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	changed := false
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}

	if u.RawQuery != "" {
		query := u.Query()
		for name := range query {
			if isSecretKey(name) {
				query.Set(name, MaskValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = query.Encode()
		}
	}

	if !changed {
		return "", false
	}
	// Both the userinfo and the query escape the mask; show it verbatim.
	return strings.ReplaceAll(u.String(), url.QueryEscape(MaskValue), MaskValue), true
}
