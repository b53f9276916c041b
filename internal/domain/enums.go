// Package domain defines the core domain models for bill splitting.
package domain

// SessionStatus represents the lifecycle state of a bill session.
type SessionStatus string

const (
	SessionStatusDraft  SessionStatus = "draft"
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusDraft, SessionStatusActive, SessionStatusClosed:
		return true
	}
	return false
}

// AttendanceStatus represents whether a participant attends the visit.
type AttendanceStatus string

const (
	AttendanceGoing    AttendanceStatus = "going"
	AttendanceMaybe    AttendanceStatus = "maybe"
	AttendanceNotGoing AttendanceStatus = "not_going"
)

// Valid reports whether a is a known attendance status.
func (a AttendanceStatus) Valid() bool {
	switch a {
	case AttendanceGoing, AttendanceMaybe, AttendanceNotGoing:
		return true
	}
	return false
}

// Role represents a participant's role within a session.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// DefaultColor is used when a participant has no color assigned.
const DefaultColor = "#FF6B6B"

// Palette is the set of avatar colors handed out to new participants.
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#FFD93D", "#95E1D3",
	"#A8E6CF", "#FFB6C1", "#B4A7D6", "#FFE5B4",
	"#FF8C94", "#A8DADC", "#F1C0E8", "#CFBAF0",
}

// ColorFor picks a stable palette color for an external identity.
func ColorFor(externalID string) string {
	if externalID == "" {
		return DefaultColor
	}
	var h uint32 = 2166136261
	for i := 0; i < len(externalID); i++ {
		h ^= uint32(externalID[i])
		h *= 16777619
	}
	return Palette[h%uint32(len(Palette))]
}
