package session

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

const fallbackCodeLen = 8

// FallbackCode derives a completion code locally when the server did not
// issue one. It is a pure function of its inputs, so retries and reloads
// reproduce the same code.
func FallbackCode(workerID string, startedAtMs int64) string {
	raw := workerID + ":" + strconv.FormatInt(startedAtMs, 10)
	var h uint32
	for _, u := range utf16.Encode([]rune(raw)) {
		h = h*31 + uint32(u)
	}
	code := strings.ToUpper(strconv.FormatUint(uint64(h), 36))
	if len(code) > fallbackCodeLen {
		code = code[len(code)-fallbackCodeLen:]
	}
	return strings.Repeat("0", fallbackCodeLen-len(code)) + code
}

// FormatElapsed renders a duration as mm:ss.
func FormatElapsed(d time.Duration) string {
	sec := int64(d / time.Second)
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}

// Prefill holds the survey form's entry ids, e.g. "entry.123456789".
type Prefill struct {
	UniqnameEntry   string
	SurveyCodeEntry string
}

// SurveyLink builds the post-session survey URL. Without prefill entries the
// base URL is returned unchanged.
func SurveyLink(base string, prefill Prefill, uniqname, code string) string {
	if base == "" {
		return ""
	}
	if prefill.UniqnameEntry == "" && prefill.SurveyCodeEntry == "" {
		return base
	}
	params := url.Values{}
	params.Set("usp", "pp_url")
	if prefill.UniqnameEntry != "" {
		params.Set(prefill.UniqnameEntry, uniqname)
	}
	if prefill.SurveyCodeEntry != "" {
		params.Set(prefill.SurveyCodeEntry, code)
	}
	if i := strings.Index(base, "/viewform"); i >= 0 {
		base = base[:i] + "/viewform"
	}
	return base + "?" + params.Encode()
}
