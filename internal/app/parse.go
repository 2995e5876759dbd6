package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"acl-go/internal/acl"
)

// parsePermissions accepts a comma-separated list or "all".
func parsePermissions(raw string) (acl.PermissionSet, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return acl.FullPermissions, nil
	}
	return acl.ParsePermissionSet(raw)
}

// parseExpiry accepts "" or "never" (no expiry), an RFC 3339 timestamp, a Go
// duration such as "36h", or a number of days such as "30d". Relative forms
// are measured from now.
func parseExpiry(raw string, now time.Time) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "never") {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}

	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid expiry %q: want a positive number of days", raw)
		}
		t := now.Add(time.Duration(n) * 24 * time.Hour)
		return &t, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry %q: want RFC 3339, a duration or Nd", raw)
	}
	if d <= 0 {
		return nil, fmt.Errorf("invalid expiry %q: duration must be positive", raw)
	}
	t := now.Add(d)
	return &t, nil
}
