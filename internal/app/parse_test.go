package app

import (
	"testing"
	"time"

	"acl-go/internal/acl"
)

func TestParsePermissions(t *testing.T) {
	tests := []struct {
		raw     string
		want    acl.PermissionSet
		wantErr bool
	}{
		{raw: "read", want: acl.NewPermissionSet(acl.PermRead)},
		{raw: "read, write", want: acl.NewPermissionSet(acl.PermRead, acl.PermWrite)},
		{raw: "ALL", want: acl.FullPermissions},
		{raw: "", want: 0},
		{raw: "read,execute", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parsePermissions(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePermissions(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parsePermissions(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		want    *time.Time
		wantErr bool
	}{
		{name: "empty", raw: ""},
		{name: "never", raw: "never"},
		{name: "rfc3339", raw: "2024-07-01T00:00:00+02:00", want: ptr(time.Date(2024, 6, 30, 22, 0, 0, 0, time.UTC))},
		{name: "duration", raw: "36h", want: ptr(now.Add(36 * time.Hour))},
		{name: "days", raw: "30d", want: ptr(now.Add(30 * 24 * time.Hour))},
		{name: "zero days", raw: "0d", wantErr: true},
		{name: "negative duration", raw: "-1h", wantErr: true},
		{name: "garbage", raw: "tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExpiry(tt.raw, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseExpiry(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseExpiry(%q) = %v, want nil", tt.raw, got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("parseExpiry(%q) = %v, want %v", tt.raw, got, *tt.want)
			}
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
