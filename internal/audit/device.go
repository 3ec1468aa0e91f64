package audit

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel condenses a User-Agent into "Browser on OS", e.g.
// "Firefox on Linux x86_64". Empty input yields "".
func DeviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		name, _ := ua.Browser()
		if name == "" {
			return "bot"
		}
		return "bot: " + name
	}
	browser, _ := ua.Browser()
	platform := ua.OS()
	switch {
	case browser != "" && platform != "":
		return browser + " on " + platform
	case browser != "":
		return browser
	case platform != "":
		return platform
	default:
		return "unknown"
	}
}
