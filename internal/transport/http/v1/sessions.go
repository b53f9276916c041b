package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/engine"
)

// GetSession returns the session snapshot.
// GET /api/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	snap, err := h.engine.Snapshot(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// GetShares returns the per-participant shares.
// GET /api/sessions/:session_id/shares
func (h *Handler) GetShares(c echo.Context) error {
	shares, err := h.engine.Shares(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"shares": shares,
	})
}

// ProfileRequest identifies a participant arriving from the bot or a link.
type ProfileRequest struct {
	ExternalID string `json:"externalId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	AvatarRef  string `json:"avatarRef"`
}

func (r ProfileRequest) profile() engine.Profile {
	return engine.Profile{
		ExternalID: r.ExternalID,
		Username:   r.Username,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		AvatarRef:  r.AvatarRef,
	}
}

// CreateSessionRequest is the request to open a session.
type CreateSessionRequest struct {
	Title           string `json:"title"`
	Venue           string `json:"venue"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	AdminExternalID string `json:"adminExternalId"`
	AdminUsername   string `json:"adminUsername"`
	AdminFirstName  string `json:"adminFirstName"`
}

// CreateSession creates a draft session.
// POST /api/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.AdminExternalID == "" {
		return badRequest(c, "adminExternalId is required")
	}

	session, err := h.engine.CreateSession(c.Request().Context(), engine.CreateSessionRequest{
		Title: req.Title,
		Venue: req.Venue,
		Date:  req.Date,
		Time:  req.Time,
		Admin: engine.Profile{
			ExternalID: req.AdminExternalID,
			Username:   req.AdminUsername,
			FirstName:  req.AdminFirstName,
		},
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// JoinSession enrolls a participant by share link.
// POST /api/sessions/:session_id/join
func (h *Handler) JoinSession(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	entry, created, err := h.engine.JoinSession(c.Request().Context(), c.Param("session_id"), req.profile())
	if err != nil {
		return h.errorResponse(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]interface{}{
		"participant": entry,
		"created":     created,
	})
}

// StatusRequest carries a new status value.
type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateSessionStatus activates or closes a session.
// PUT /api/sessions/:session_id/status
func (h *Handler) UpdateSessionStatus(c echo.Context) error {
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Status == "" {
		return badRequest(c, "status is required")
	}

	err := h.engine.UpdateSessionStatus(c.Request().Context(), c.Param("session_id"), domain.SessionStatus(req.Status))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

// SetAttendance changes a participant's attendance.
// PUT /api/sessions/:session_id/participants/:participant_id/attendance
func (h *Handler) SetAttendance(c echo.Context) error {
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Status == "" {
		return badRequest(c, "status is required")
	}

	err := h.engine.SetAttendance(c.Request().Context(),
		c.Param("session_id"), c.Param("participant_id"), domain.AttendanceStatus(req.Status))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}
