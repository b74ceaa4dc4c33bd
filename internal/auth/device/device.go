// Package device derives advisory device context from a request's
// User-Agent and remote address. The output decorates session rows for the
// account's "active sessions" view; nothing authorizes against it, so a
// coarse substring classification is all it needs.
package device

import (
	"net"
	"net/http"
	"strings"

	"github.com/harborview-digital/showcase/internal/auth/domain"
)

// FromRequest classifies the calling client. Unknown or absent User-Agents
// yield "unknown" fields rather than errors.
func FromRequest(r *http.Request) domain.DeviceInfo {
	ua := strings.ToLower(r.UserAgent())

	return domain.DeviceInfo{
		Type:    deviceType(ua),
		Browser: browser(ua),
		OS:      operatingSystem(ua),
		IP:      clientIP(r),
	}
}

func deviceType(ua string) string {
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "bot") || strings.Contains(ua, "crawler") || strings.Contains(ua, "spider"):
		return "bot"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}

func browser(ua string) string {
	switch {
	// Order matters: Edge and Opera embed "chrome", Chrome embeds "safari".
	case strings.Contains(ua, "edg/"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	default:
		return "unknown"
	}
}

func operatingSystem(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "unknown"
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
