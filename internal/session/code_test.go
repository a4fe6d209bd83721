package session

import (
	"testing"
	"time"
)

func TestFallbackCodeIsDeterministic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		worker  string
		started int64
		want    string
	}{
		{"A1B2C3", 1700000000000, "00JJ1EJK"},
		{"local-worker", 0, "00G1VF4M"},
	}
	for _, tc := range cases {
		got := FallbackCode(tc.worker, tc.started)
		if got != tc.want {
			t.Errorf("FallbackCode(%q, %d) = %q, want %q", tc.worker, tc.started, got, tc.want)
		}
		if again := FallbackCode(tc.worker, tc.started); again != got {
			t.Errorf("FallbackCode not stable: %q then %q", got, again)
		}
		if len(got) != 8 {
			t.Errorf("len(%q) = %d, want 8", got, len(got))
		}
	}

	if FallbackCode("A1B2C3", 1700000000001) == FallbackCode("A1B2C3", 1700000000000) {
		t.Error("different start times produced the same code")
	}
}

func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		-time.Second:                    "00:00",
		0:                               "00:00",
		999 * time.Millisecond:          "00:00",
		61 * time.Second:                "01:01",
		59*time.Minute + 59*time.Second: "59:59",
		125 * time.Minute:               "125:00",
	}
	for d, want := range cases {
		if got := FormatElapsed(d); got != want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestSurveyLink(t *testing.T) {
	t.Parallel()

	base := "https://docs.google.com/forms/d/e/abc/viewform?usp=header"

	if got := SurveyLink(base, Prefill{}, "jdoe", "XYZ"); got != base {
		t.Errorf("without prefill got %q", got)
	}

	got := SurveyLink(base, Prefill{UniqnameEntry: "entry.1", SurveyCodeEntry: "entry.2"}, "jdoe", "XYZ")
	want := "https://docs.google.com/forms/d/e/abc/viewform?entry.1=jdoe&entry.2=XYZ&usp=pp_url"
	if got != want {
		t.Errorf("SurveyLink = %q, want %q", got, want)
	}

	if got := SurveyLink("", Prefill{UniqnameEntry: "entry.1"}, "jdoe", "XYZ"); got != "" {
		t.Errorf("empty base gave %q", got)
	}
}
