package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snekaaa/banya-check/internal/engine"
	"github.com/snekaaa/banya-check/internal/policy"
	"github.com/snekaaa/banya-check/internal/testutil"
	v1 "github.com/snekaaa/banya-check/internal/transport/http/v1"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	db := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, db, 2)
	testutil.AddItem(t, db, "beer", "500", "4", false)

	pe, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	e := echo.New()
	v1.NewHandler(engine.New(db, engine.Options{Policy: pe}), nil).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL + "/")
}

func TestClaimReleaseAndSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	claim, err := c.Claim(ctx, "beer", "p1", decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, claim.OK)
	assert.Equal(t, "1", claim.Remaining.String())
	assert.Equal(t, "p1", claim.Selection.ParticipantID)

	snap, err := c.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "3", snap.Items[0].Claimed.String())
	assert.Len(t, snap.Participants, 2)

	rel, err := c.Release(ctx, "beer", "p1")
	require.NoError(t, err)
	assert.True(t, rel.Released)

	rel, err = c.Release(ctx, "beer", "p1")
	require.NoError(t, err)
	assert.False(t, rel.Released)
}

func TestOverAllocationCarriesRemaining(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.Claim(ctx, "beer", "p1", decimal.NewFromInt(3))
	require.NoError(t, err)

	_, err = c.Claim(ctx, "beer", "p2", decimal.NewFromInt(2))
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	require.NotNil(t, apiErr.Remaining)
	assert.Equal(t, "1", apiErr.Remaining.String())
}

func TestConfirmLocksClaims(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	res, err := c.Confirm(ctx, "s1", "p1")
	require.NoError(t, err)
	require.Len(t, res.Participants, 2)
	assert.True(t, res.Participants[0].SelectionConfirmed)

	_, err = c.Claim(ctx, "beer", "p1", decimal.NewFromInt(1))
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Nil(t, apiErr.Remaining)

	res, err = c.Unconfirm(ctx, "s1", "p1")
	require.NoError(t, err)
	assert.False(t, res.Participants[0].SelectionConfirmed)

	_, err = c.Claim(ctx, "beer", "p1", decimal.NewFromInt(1))
	require.NoError(t, err)
}

func TestNotFoundAndPlainTextErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.Snapshot(ctx, "missing")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err = NewClient(srv.URL).Snapshot(ctx, "s1")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Contains(t, err.Error(), "502")
}
