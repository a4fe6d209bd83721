package runner

import (
	"testing"
	_ "time/tzdata"
)

func TestTimeZoneName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  string
		link string
		want string
	}{
		{"env wins", "America/Detroit", "/usr/share/zoneinfo/Europe/Berlin", "America/Detroit"},
		{"env with colon", ":UTC", "", "UTC"},
		{"localtime symlink", "", "/usr/share/zoneinfo/Europe/Berlin", "Europe/Berlin"},
		{"relative symlink", "", "../usr/share/zoneinfo/Asia/Tokyo", "Asia/Tokyo"},
		{"bad env falls back", "Not/AZone", "/usr/share/zoneinfo/UTC", "UTC"},
		{"unknown", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := timeZoneName(tt.env, tt.link); got != tt.want {
				t.Errorf("timeZoneName(%q, %q) = %q, want %q", tt.env, tt.link, got, tt.want)
			}
		})
	}
}
