package tracking

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/user_agent"

	"github.com/ignite/announce/internal/domain"
)

// Device classes recorded on open and click events.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// requestMeta extracts the event metadata of a tracking hit.
func requestMeta(r *http.Request) domain.EventMetadata {
	ua := r.UserAgent()
	return domain.EventMetadata{
		IP:        realIP(r),
		UserAgent: ua,
		Referrer:  r.Referer(),
		Device:    deviceClass(ua),
	}
}

// deviceClass classifies a user agent. Image proxies and link scanners
// report as bots.
func deviceClass(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return DeviceUnknown
	}
	ua := user_agent.New(raw)
	if ua.Bot() {
		return DeviceBot
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") ||
		(strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")) {
		return DeviceTablet
	}
	if ua.Mobile() {
		return DeviceMobile
	}
	return DeviceDesktop
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
