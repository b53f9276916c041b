package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/policy"
	"github.com/snekaaa/banya-check/internal/protocol"
)

// Profile is the identity a participant arrives with from the bot or a
// share link.
type Profile struct {
	ExternalID string
	Username   string
	FirstName  string
	LastName   string
	AvatarRef  string
}

// CreateSessionRequest opens a new draft session.
type CreateSessionRequest struct {
	Title string
	Venue string
	Date  string
	Time  string
	Admin Profile
}

// CreateSession creates a draft session and enrolls its administrator.
func (e *Engine) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.InvalidInput("title is required")
	}
	admin, err := e.upsertProfile(ctx, req.Admin)
	if err != nil {
		return nil, err
	}

	now := e.now()
	session := &domain.Session{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(req.Title),
		Venue:     req.Venue,
		Date:      req.Date,
		Time:      req.Time,
		Status:    domain.SessionStatusDraft,
		AdminID:   admin.ID,
		CreatedAt: now,
	}
	if err := e.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	if _, err := e.store.EnrollParticipant(ctx, &domain.Enrollment{
		SessionID:     session.ID,
		ParticipantID: admin.ID,
		Attendance:    domain.AttendanceGoing,
		Role:          domain.RoleAdmin,
		JoinedAt:      now,
	}); err != nil {
		return nil, err
	}

	e.logger.Info("session created", "session_id", session.ID, "admin_id", admin.ID)
	return session, nil
}

// JoinSession enrolls the profile's participant in a session as a going
// member, creating the participant on first sight. Joining twice is not an
// error; created reports whether this call enrolled the participant.
func (e *Engine) JoinSession(ctx context.Context, sessionID string, profile Profile) (entry *domain.RosterEntry, created bool, err error) {
	if _, err := e.requireSession(ctx, sessionID, policy.ActionJoin); err != nil {
		return nil, false, err
	}
	p, err := e.upsertProfile(ctx, profile)
	if err != nil {
		return nil, false, err
	}

	created, err = e.store.EnrollParticipant(ctx, &domain.Enrollment{
		SessionID:     sessionID,
		ParticipantID: p.ID,
		Attendance:    domain.AttendanceGoing,
		Role:          domain.RoleMember,
		JoinedAt:      e.now(),
	})
	if err != nil {
		return nil, false, err
	}
	enrollment, err := e.store.GetEnrollment(ctx, sessionID, p.ID)
	if err != nil {
		return nil, false, err
	}
	if enrollment == nil {
		return nil, false, domain.ErrNotEnrolled
	}

	if created {
		e.logger.Info("participant joined", "session_id", sessionID, "participant_id", p.ID)
		e.notify(sessionID, &protocol.RosterUpdatedMessage{ParticipantID: p.ID})
	}
	return &domain.RosterEntry{Enrollment: *enrollment, Participant: *p}, created, nil
}

// upsertProfile creates or refreshes a participant. Empty profile fields
// keep the stored values; the stored ID and color always win.
func (e *Engine) upsertProfile(ctx context.Context, profile Profile) (*domain.Participant, error) {
	if profile.ExternalID == "" {
		return nil, domain.InvalidInput("externalId is required")
	}
	existing, err := e.store.GetParticipantByExternalID(ctx, profile.ExternalID)
	if err != nil {
		return nil, err
	}

	p := &domain.Participant{
		ID:         uuid.New().String(),
		ExternalID: profile.ExternalID,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		AvatarRef:  profile.AvatarRef,
		Color:      domain.ColorFor(profile.ExternalID),
		CreatedAt:  e.now(),
	}
	if existing != nil {
		p.Username = firstNonEmpty(p.Username, existing.Username)
		p.FirstName = firstNonEmpty(p.FirstName, existing.FirstName)
		p.LastName = firstNonEmpty(p.LastName, existing.LastName)
		p.AvatarRef = firstNonEmpty(p.AvatarRef, existing.AvatarRef)
	}
	return e.store.UpsertParticipant(ctx, p)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// SetAttendance changes whether an enrolled participant is going.
func (e *Engine) SetAttendance(ctx context.Context, sessionID, participantID string, status domain.AttendanceStatus) error {
	if !status.Valid() {
		return domain.InvalidInput("unknown attendance status %q", status)
	}
	if _, _, err := e.requireEnrollment(ctx, sessionID, participantID, policy.ActionSetAttendance); err != nil {
		return err
	}
	ok, err := e.store.SetAttendance(ctx, sessionID, participantID, status)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotEnrolled
	}

	e.notify(sessionID, &protocol.RosterUpdatedMessage{ParticipantID: participantID})
	return nil
}

// UpdateSessionStatus moves a session between draft, active and closed.
func (e *Engine) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	if !status.Valid() {
		return domain.InvalidInput("unknown session status %q", status)
	}
	ok, err := e.store.UpdateSessionStatus(ctx, sessionID, status)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}

	e.logger.Info("session status updated", "session_id", sessionID, "status", status)
	e.notify(sessionID, &protocol.RosterUpdatedMessage{})
	return nil
}

// ListParticipantSessions returns every session a participant is enrolled in.
func (e *Engine) ListParticipantSessions(ctx context.Context, participantID string) ([]domain.ParticipantSession, error) {
	p, err := e.ResolveParticipant(ctx, ParticipantRef{ID: participantID})
	if err != nil {
		return nil, err
	}
	sessions, err := e.store.ListParticipantSessions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.ParticipantSession{}
	}
	return sessions, nil
}
