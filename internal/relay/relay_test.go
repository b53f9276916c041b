package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snekaaa/banya-check/internal/protocol"
)

type recordingHub struct {
	mu     sync.Mutex
	events []protocol.Event
	rooms  []string
}

func (h *recordingHub) Publish(sessionID string, event protocol.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = append(h.rooms, sessionID)
	h.events = append(h.events, event)
	return 2
}

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := EncodeEnvelope("s1", &protocol.ItemSelectionUpdatedMessage{
		ItemID:        "beer",
		ParticipantID: "p1",
		Quantity:      decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)

	sessionID, event, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "s1", sessionID)

	msg, ok := event.(*protocol.ItemSelectionUpdatedMessage)
	require.True(t, ok)
	assert.Equal(t, "beer", msg.ItemID)
	assert.Equal(t, "s1", msg.SessionID)
	assert.True(t, msg.Quantity.Equal(decimal.RequireFromString("1.5")))
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `nope`, protocol.ErrMalformed},
		{"missing session", `{"event":{"type":"expenses_updated"}}`, protocol.ErrMalformed},
		{"missing event", `{"sessionId":"s1"}`, protocol.ErrMalformed},
		{"unknown type", `{"sessionId":"s1","event":{"type":"shrug"}}`, protocol.ErrUnknownType},
		{"presence event", `{"sessionId":"s1","event":{"type":"user_left","participantId":"p1"}}`, ErrNotContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeEnvelope([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLocalNotify(t *testing.T) {
	hub := &recordingHub{}
	err := NewLocal(hub).Notify(context.Background(), "s1", &protocol.ExpensesUpdatedMessage{})
	require.NoError(t, err)

	require.Len(t, hub.events, 1)
	assert.Equal(t, "s1", hub.rooms[0])
	assert.Equal(t, "s1", protocol.SessionOf(hub.events[0]))
}

func TestHTTPClientNotify(t *testing.T) {
	var got Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SendPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true,"delivered":1}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", srv.Client())
	err := c.Notify(context.Background(), "s1", &protocol.RosterUpdatedMessage{ParticipantID: "p2"})
	require.NoError(t, err)

	assert.Equal(t, "s1", got.SessionID)
	assert.JSONEq(t, `{"type":"roster_updated","sessionId":"s1","participantId":"p2"}`, string(got.Event))
}

func TestHTTPClientNotifyNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad event", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, nil).Notify(context.Background(), "s1", &protocol.ExpensesUpdatedMessage{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hub returned 400")
	assert.Contains(t, err.Error(), "bad event")
}

func TestHTTPClientNotifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTPClient(url, nil).Notify(context.Background(), "s1", &protocol.ExpensesUpdatedMessage{})
	assert.Error(t, err)
}

func TestRedisPublisherNotify(t *testing.T) {
	db, mock := redismock.NewClientMock()

	want, err := EncodeEnvelope("s1", &protocol.ExpensesUpdatedMessage{})
	require.NoError(t, err)
	mock.ExpectPublish("banya:presence", string(want)).SetVal(1)

	p := NewRedisPublisher(db, "banya:presence")
	require.NoError(t, p.Notify(context.Background(), "s1", &protocol.ExpensesUpdatedMessage{}))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRedisPublisherNotifyError(t *testing.T) {
	db, mock := redismock.NewClientMock()

	want, err := EncodeEnvelope("s1", &protocol.ExpensesUpdatedMessage{})
	require.NoError(t, err)
	mock.ExpectPublish("banya:presence", string(want)).SetErr(errors.New("connection refused"))

	err = NewRedisPublisher(db, "banya:presence").Notify(context.Background(), "s1", &protocol.ExpensesUpdatedMessage{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRedisSubscriberHandle(t *testing.T) {
	hub := &recordingHub{}
	sub := NewRedisSubscriber(nil, "banya:presence", hub, nil)

	payload, err := EncodeEnvelope("s9", &protocol.SelectionConfirmedMessage{ParticipantID: "p1", Confirmed: true})
	require.NoError(t, err)

	assert.Equal(t, 2, sub.Handle(string(payload)))
	assert.Equal(t, 0, sub.Handle(`{"sessionId":"s9","event":{"type":"ping"}}`))
	assert.Equal(t, 0, sub.Handle(`garbage`))

	require.Len(t, hub.events, 1)
	assert.Equal(t, "s9", hub.rooms[0])
	msg, ok := hub.events[0].(*protocol.SelectionConfirmedMessage)
	require.True(t, ok)
	assert.True(t, msg.Confirmed)
}
