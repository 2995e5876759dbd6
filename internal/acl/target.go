package acl

import (
	"fmt"
	"strings"
)

// TargetKind says whether a grant applies to a user or a group.
type TargetKind string

const (
	TargetUser  TargetKind = "user"
	TargetGroup TargetKind = "group"
)

// GrantTarget names the principal of a grant: exactly one user or exactly one group.
// The fields are unexported so a target can only be built through UserTarget or
// GroupTarget; the zero value is invalid and rejected by Validate.
type GrantTarget struct {
	kind TargetKind
	id   string
}

func UserTarget(userID string) GrantTarget { return GrantTarget{kind: TargetUser, id: userID} }

func GroupTarget(groupID string) GrantTarget { return GrantTarget{kind: TargetGroup, id: groupID} }

// ParseTarget parses "user:<id>" or "group:<id>".
func ParseTarget(s string) (GrantTarget, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return GrantTarget{}, invalidf("parse target", "target %q must be user:<id> or group:<id>", s)
	}
	t := GrantTarget{kind: TargetKind(kind), id: id}
	if err := t.Validate(); err != nil {
		return GrantTarget{}, err
	}
	return t, nil
}

func (t GrantTarget) Kind() TargetKind { return t.kind }
func (t GrantTarget) ID() string       { return t.id }
func (t GrantTarget) IsUser() bool     { return t.kind == TargetUser }
func (t GrantTarget) IsGroup() bool    { return t.kind == TargetGroup }

// UserID returns the user id, or "" for group targets.
func (t GrantTarget) UserID() string {
	if t.IsUser() {
		return t.id
	}
	return ""
}

// GroupID returns the group id, or "" for user targets.
func (t GrantTarget) GroupID() string {
	if t.IsGroup() {
		return t.id
	}
	return ""
}

func (t GrantTarget) Validate() error {
	if t.kind != TargetUser && t.kind != TargetGroup {
		return invalidf("validate target", "target must be a user or a group")
	}
	if strings.TrimSpace(t.id) == "" {
		return invalidf("validate target", "%s target requires an id", t.kind)
	}
	return nil
}

// Matches reports whether the target covers the given user and their groups.
func (t GrantTarget) Matches(userID string, groupIDs []string) bool {
	switch t.kind {
	case TargetUser:
		return t.id == userID
	case TargetGroup:
		for _, g := range groupIDs {
			if g == t.id {
				return true
			}
		}
	}
	return false
}

func (t GrantTarget) String() string { return fmt.Sprintf("%s:%s", t.kind, t.id) }
