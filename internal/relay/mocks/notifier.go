// Package mocks holds testify mocks for relay interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/snekaaa/banya-check/internal/protocol"
)

// Notifier is a mock of relay.Notifier.
type Notifier struct {
	mock.Mock
}

// NewNotifier creates a Notifier whose expectations are asserted on cleanup.
func NewNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *Notifier {
	m := &Notifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Notify provides a mock function with given fields: ctx, sessionID, event
func (m *Notifier) Notify(ctx context.Context, sessionID string, event protocol.Event) error {
	ret := m.Called(ctx, sessionID, event)

	if rf, ok := ret.Get(0).(func(context.Context, string, protocol.Event) error); ok {
		return rf(ctx, sessionID, event)
	}
	return ret.Error(0)
}
