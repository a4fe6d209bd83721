package runner

import (
	"os"
	"strings"
	"time"
)

const zoneinfoDir = "zoneinfo/"

// LocalTimeZone returns the IANA name of the local zone, or "" when it
// cannot be determined. time.Local only reports "Local".
func LocalTimeZone() string {
	link, _ := os.Readlink("/etc/localtime")
	return timeZoneName(os.Getenv("TZ"), link)
}

func timeZoneName(tzEnv, localtimeLink string) string {
	if tz := strings.TrimPrefix(strings.TrimSpace(tzEnv), ":"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	if i := strings.LastIndex(localtimeLink, zoneinfoDir); i >= 0 {
		tz := localtimeLink[i+len(zoneinfoDir):]
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	return ""
}
