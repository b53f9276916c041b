package receipt

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snekaaa/banya-check/internal/engine"
	"github.com/snekaaa/banya-check/internal/policy"
	"github.com/snekaaa/banya-check/internal/testutil"
)

type scriptedScanner struct {
	mu      sync.Mutex
	results []*Result
	err     error
	polls   int
}

func (s *scriptedScanner) Submit(ctx context.Context, sessionID string, image io.Reader) (*Submission, error) {
	return &Submission{Token: "tok-" + sessionID, Status: StatusProcessing}, nil
}

func (s *scriptedScanner) Poll(ctx context.Context, token string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return &Result{Status: StatusProcessing}, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAwaitPollsUntilCompleted(t *testing.T) {
	s := &scriptedScanner{results: []*Result{
		{Status: StatusProcessing},
		{Status: StatusProcessing},
		{Status: StatusCompleted, Items: []Line{
			{Name: " Beer ", Price: dec("500"), Quantity: dec("4")},
			{Name: "Total", Price: dec("0"), Quantity: dec("1")},
			{Name: "Tea", Price: dec("300")},
		}},
	}}

	res, err := Await(context.Background(), s, "tok", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, s.polls)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Beer", res.Items[0].Name)
	assert.Equal(t, "1", res.Items[1].Quantity.String())
}

func TestAwaitFailed(t *testing.T) {
	s := &scriptedScanner{results: []*Result{{Status: StatusFailed, Message: "blurry image"}}}

	_, err := Await(context.Background(), s, "tok", time.Millisecond)
	assert.ErrorIs(t, err, ErrScanFailed)
	assert.Contains(t, err.Error(), "blurry image")
}

func TestAwaitPollError(t *testing.T) {
	boom := errors.New("service unavailable")
	s := &scriptedScanner{err: boom}

	_, err := Await(context.Background(), s, "tok", time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.polls)
}

func TestAwaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Await(ctx, &scriptedScanner{}, "tok", time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNormalize(t *testing.T) {
	out := Normalize([]Line{
		{Name: "", Price: dec("100")},
		{Name: "Refund", Price: dec("-50"), Quantity: dec("1")},
		{Name: "Broom", Price: dec("1500"), Quantity: dec("1"), IsCommon: true},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "Broom", out[0].Name)
	assert.True(t, out[0].IsCommon)
}

func TestResultImportsAsItems(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, db, 1)

	pe, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	eng := engine.New(db, engine.Options{Policy: pe})

	s := &scriptedScanner{results: []*Result{{Status: StatusCompleted, Items: []Line{
		{Name: "Beer", Price: dec("500"), Quantity: dec("4")},
		{Name: "Broom", Price: dec("1500"), Quantity: dec("1"), IsCommon: true},
	}}}}
	sub, err := s.Submit(ctx, "s1", nil)
	require.NoError(t, err)

	res, err := Await(ctx, s, sub.Token, time.Millisecond)
	require.NoError(t, err)

	items, err := eng.ImportItems(ctx, "s1", res.ItemInputs())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[1].IsCommon)
	assert.Equal(t, "4", items[0].TotalQuantity.String())
}
