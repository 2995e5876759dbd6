package archive

import (
	"context"
	"path/filepath"
	"testing"

	"acl-go/internal/config"
)

func TestNewArchiveFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ArchiveConfig
		wantErr bool
		wantNil bool
	}{
		{
			name:    "none",
			cfg:     config.ArchiveConfig{Type: "none"},
			wantNil: true,
		},
		{
			name:    "empty type",
			cfg:     config.ArchiveConfig{},
			wantNil: true,
		},
		{
			name: "memory archive",
			cfg:  config.ArchiveConfig{Type: "memory", Name: "test-memory"},
		},
		{
			name: "filesystem archive",
			cfg:  config.ArchiveConfig{Type: "filesystem", Name: "test-fs", FSRoot: filepath.Join(t.TempDir(), "archive")},
		},
		{
			name:    "filesystem archive without root",
			cfg:     config.ArchiveConfig{Type: "filesystem", Name: "test-fs"},
			wantErr: true,
			wantNil: true,
		},
		{
			name: "s3 archive",
			cfg: config.ArchiveConfig{
				Type:              "s3",
				Name:              "test-s3",
				S3Bucket:          "my-bucket",
				S3Region:          "us-east-1",
				S3Endpoint:        "http://localhost:9000",
				S3AccessKeyID:     "key",
				S3SecretAccessKey: "secret",
			},
		},
		{
			name:    "s3 archive without bucket",
			cfg:     config.ArchiveConfig{Type: "s3", Name: "test-s3", S3Region: "us-east-1"},
			wantErr: true,
			wantNil: true,
		},
		{
			name:    "unknown archive type",
			cfg:     config.ArchiveConfig{Type: "tape", Name: "test-unknown"},
			wantErr: true,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewArchiveFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewArchiveFromConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if (got == nil) != tt.wantNil {
				t.Errorf("NewArchiveFromConfig() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}
