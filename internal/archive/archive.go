// Package archive stores exported audit segments and database snapshots.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"acl-go/internal/acl"
)

// ErrNotFound is returned by Get for a key that was never stored.
var ErrNotFound = errors.New("archive object not found")

// Store is an acl.Archive that can also enumerate and self-check.
type Store interface {
	acl.Archive

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// ValidateSetup verifies the backend is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// validateKey rejects keys that are empty, absolute, or escape the root.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("archive key must not be empty")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("archive key %q must be relative", key)
	}
	if clean := path.Clean(key); clean != key || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("archive key %q is not canonical", key)
	}
	return nil
}
