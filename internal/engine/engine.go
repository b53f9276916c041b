// Package engine implements the bill allocation rules: claims, releases,
// confirmations, payments and per-participant shares.
//
// Every mutation commits to the store first and then hands a content event
// to the notifier on its own goroutine. A notify failure is logged and never
// reaches the caller.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snekaaa/banya-check/internal/clock"
	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/policy"
	"github.com/snekaaa/banya-check/internal/protocol"
	"github.com/snekaaa/banya-check/internal/relay"
	"github.com/snekaaa/banya-check/internal/store"
)

const defaultNotifyTimeout = 5 * time.Second

// Policy decides whether a mutation may proceed.
type Policy interface {
	Check(ctx context.Context, input policy.Input) error
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Policy        Policy
	Notifier      relay.Notifier
	Logger        *slog.Logger
	Clock         clock.Clock
	NotifyTimeout time.Duration
}

// Engine is the only writer of items, selections, confirmations and payments.
type Engine struct {
	store         store.Store
	policy        Policy
	notifier      relay.Notifier
	logger        *slog.Logger
	clock         clock.Clock
	notifyTimeout time.Duration

	pending sync.WaitGroup
}

// New creates an Engine over s.
func New(s store.Store, opts Options) *Engine {
	e := &Engine{
		store:         s,
		policy:        opts.Policy,
		notifier:      opts.Notifier,
		logger:        opts.Logger,
		clock:         opts.Clock,
		notifyTimeout: opts.NotifyTimeout,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.notifyTimeout <= 0 {
		e.notifyTimeout = defaultNotifyTimeout
	}
	return e
}

// Drain waits for in-flight notifications or until ctx is done.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) notify(sessionID string, event protocol.Event) {
	if e.notifier == nil {
		return
	}
	protocol.WithSession(event, sessionID)

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
		defer cancel()

		if err := e.notifier.Notify(ctx, sessionID, event); err != nil {
			e.logger.Warn("failed to broadcast event",
				"session_id", sessionID,
				"type", event.EventType(),
				"error", err)
		}
	}()
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

func (e *Engine) check(ctx context.Context, input policy.Input) error {
	if e.policy == nil {
		return nil
	}
	return e.policy.Check(ctx, input)
}

// requireSession loads a session and evaluates action against it.
func (e *Engine) requireSession(ctx context.Context, sessionID, action string) (*domain.Session, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if err := e.check(ctx, policy.Input{Action: action, SessionStatus: string(session.Status)}); err != nil {
		return nil, err
	}
	return session, nil
}

// requireEnrollment loads a session and a participant's enrollment in it and
// evaluates action against both.
func (e *Engine) requireEnrollment(ctx context.Context, sessionID, participantID, action string) (*domain.Session, *domain.Enrollment, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, domain.ErrSessionNotFound
	}
	enrollment, err := e.store.GetEnrollment(ctx, sessionID, participantID)
	if err != nil {
		return nil, nil, err
	}
	if enrollment == nil {
		return nil, nil, domain.ErrNotEnrolled
	}
	if err := e.check(ctx, policy.Input{
		Action:             action,
		SessionStatus:      string(session.Status),
		SelectionConfirmed: enrollment.SelectionConfirmed,
		Role:               string(enrollment.Role),
	}); err != nil {
		return nil, nil, err
	}
	return session, enrollment, nil
}

// ParticipantRef names a participant by internal or external ID.
type ParticipantRef struct {
	ID         string
	ExternalID string
}

// ResolveParticipant looks a participant up by ID, or by external ID when
// no ID is given.
func (e *Engine) ResolveParticipant(ctx context.Context, ref ParticipantRef) (*domain.Participant, error) {
	var (
		p   *domain.Participant
		err error
	)
	switch {
	case ref.ID != "":
		p, err = e.store.GetParticipant(ctx, ref.ID)
	case ref.ExternalID != "":
		p, err = e.store.GetParticipantByExternalID(ctx, ref.ExternalID)
	default:
		return nil, domain.InvalidInput("participantId or externalId is required")
	}
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrParticipantNotFound
	}
	return p, nil
}
