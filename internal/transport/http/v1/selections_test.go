package v1

import (
	"net/http"
	"testing"

	"github.com/snekaaa/banya-check/internal/testutil"
)

func TestSelectItemValidation(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.AddItem(t, db, "beer", "500", "4", false)

	rec := call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `{"participantId":"p1"}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusBadRequest)

	rec = call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `{"quantity":1}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusBadRequest)

	rec = call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `not json`, "item_id", "beer")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSelectItemNotFound(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.AddItem(t, db, "beer", "500", "4", false)

	rec := call(t, h.SelectItem, http.MethodPost, "/api/items/vodka/select", `{"participantId":"p1","quantity":1}`, "item_id", "vodka")
	expectStatus(t, rec, http.StatusNotFound)

	rec = call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `{"externalId":"nobody","quantity":1}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestSelectItemOverAllocated(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.AddItem(t, db, "beer", "500", "4", false)

	rec := call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `{"participantId":"p1","quantity":3}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["remaining"]; got != "1" {
		t.Fatalf("expected remaining 1, got %v", got)
	}

	rec = call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `{"externalId":"ext-2","quantity":"2"}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusConflict)
	body := decode(t, rec)
	if body["remaining"] != "1" {
		t.Fatalf("expected remaining 1, got %v", body["remaining"])
	}
	if body["error"] == "" {
		t.Fatalf("expected an error message")
	}
}

func TestSelectCommonItemRejected(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.AddItem(t, db, "rent", "3000", "1", true)

	rec := call(t, h.SelectItem, http.MethodPost, "/api/items/rent/select", `{"participantId":"p1","quantity":1}`, "item_id", "rent")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestUnselectItemIsIdempotent(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.AddItem(t, db, "beer", "500", "4", false)

	rec := call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `{"participantId":"p1","quantity":2}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusOK)

	rec = call(t, h.UnselectItem, http.MethodDelete, "/api/items/beer/unselect", `{"participantId":"p1"}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusOK)
	if decode(t, rec)["released"] != true {
		t.Fatalf("expected released true: %s", rec.Body.String())
	}

	rec = call(t, h.UnselectItem, http.MethodDelete, "/api/items/beer/unselect?participantId=p1", "", "item_id", "beer")
	expectStatus(t, rec, http.StatusOK)
	if decode(t, rec)["released"] != false {
		t.Fatalf("expected released false: %s", rec.Body.String())
	}

	rec = call(t, h.UnselectItem, http.MethodDelete, "/api/items/vodka/unselect", `{"participantId":"p1"}`, "item_id", "vodka")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestConfirmSelectionLocksClaims(t *testing.T) {
	h, db := newTestHandler(t)
	testutil.AddItem(t, db, "beer", "500", "4", false)

	rec := call(t, h.ConfirmSelection, http.MethodPost, "/api/sessions/s1/confirm-selection", `{"participantId":"p1"}`, "session_id", "s1")
	expectStatus(t, rec, http.StatusOK)
	participants, ok := decode(t, rec)["participants"].([]interface{})
	if !ok || len(participants) != 2 {
		t.Fatalf("expected refreshed roster of 2, got %s", rec.Body.String())
	}

	rec = call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `{"participantId":"p1","quantity":1}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusConflict)

	rec = call(t, h.UnconfirmSelection, http.MethodPost, "/api/sessions/s1/unconfirm-selection", `{"participantId":"p1"}`, "session_id", "s1")
	expectStatus(t, rec, http.StatusOK)

	rec = call(t, h.SelectItem, http.MethodPost, "/api/items/beer/select", `{"participantId":"p1","quantity":1}`, "item_id", "beer")
	expectStatus(t, rec, http.StatusOK)

	rec = call(t, h.ConfirmSelection, http.MethodPost, "/api/sessions/s1/confirm-selection", `{"participantId":"ghost"}`, "session_id", "s1")
	expectStatus(t, rec, http.StatusNotFound)

	rec = call(t, h.ConfirmSelection, http.MethodPost, "/api/sessions/s1/confirm-selection", `{}`, "session_id", "s1")
	expectStatus(t, rec, http.StatusBadRequest)
}
