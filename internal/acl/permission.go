package acl

import (
	"fmt"
	"strings"
)

// PermissionType is one of the five grantable permissions.
type PermissionType string

const (
	PermRead   PermissionType = "read"
	PermWrite  PermissionType = "write"
	PermDelete PermissionType = "delete"
	PermShare  PermissionType = "share"
	PermAdmin  PermissionType = "admin"
)

// AllPermissionTypes lists every permission type in display order.
var AllPermissionTypes = []PermissionType{PermRead, PermWrite, PermDelete, PermShare, PermAdmin}

func (p PermissionType) bit() PermissionSet {
	switch p {
	case PermRead:
		return 1 << 0
	case PermWrite:
		return 1 << 1
	case PermDelete:
		return 1 << 2
	case PermShare:
		return 1 << 3
	case PermAdmin:
		return 1 << 4
	default:
		return 0
	}
}

// Valid reports whether p is a known permission type.
func (p PermissionType) Valid() bool { return p.bit() != 0 }

// ParsePermissionType converts a string such as "write" into a PermissionType.
func ParsePermissionType(s string) (PermissionType, error) {
	p := PermissionType(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", invalidf("parse permission", "unknown permission type %q", s)
	}
	return p, nil
}

// PermissionSet is a bitset over the permission types.
type PermissionSet uint8

// FullPermissions holds every permission type. Owners and superusers resolve to it.
const FullPermissions PermissionSet = 1<<5 - 1

// NewPermissionSet builds a set from the given types. Unknown types are ignored.
func NewPermissionSet(perms ...PermissionType) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s |= p.bit()
	}
	return s
}

// ParsePermissionSet parses a comma-separated list such as "read,write".
// An empty string yields the empty set.
func ParsePermissionSet(s string) (PermissionSet, error) {
	var set PermissionSet
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePermissionType(part)
		if err != nil {
			return 0, err
		}
		set = set.Add(p)
	}
	return set, nil
}

func (s PermissionSet) Has(p PermissionType) bool { return p.Valid() && s&p.bit() != 0 }

// HasAll reports whether every permission in other is also in s.
func (s PermissionSet) HasAll(other PermissionSet) bool { return s&other == other }

func (s PermissionSet) Add(p PermissionType) PermissionSet { return s | p.bit() }

func (s PermissionSet) Union(other PermissionSet) PermissionSet { return s | other }

// Without returns s minus the permissions in other.
func (s PermissionSet) Without(other PermissionSet) PermissionSet { return s &^ other }

func (s PermissionSet) IsEmpty() bool { return s&FullPermissions == 0 }

// List returns the permission types in s in display order.
func (s PermissionSet) List() []PermissionType {
	var out []PermissionType
	for _, p := range AllPermissionTypes {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s PermissionSet) String() string {
	if s.IsEmpty() {
		return "none"
	}
	names := make([]string, 0, 5)
	for _, p := range s.List() {
		names = append(names, string(p))
	}
	return strings.Join(names, ",")
}

func (s PermissionSet) CanRead() bool   { return s.Has(PermRead) }
func (s PermissionSet) CanWrite() bool  { return s.Has(PermWrite) }
func (s PermissionSet) CanDelete() bool { return s.Has(PermDelete) }
func (s PermissionSet) CanShare() bool  { return s.Has(PermShare) }
func (s PermissionSet) CanAdmin() bool  { return s.Has(PermAdmin) }

// GoString keeps %#v output readable in test failures.
func (s PermissionSet) GoString() string { return fmt.Sprintf("PermissionSet(%s)", s) }
