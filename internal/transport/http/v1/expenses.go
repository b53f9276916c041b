package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/engine"
	"github.com/snekaaa/banya-check/internal/receipt"
)

// ExpenseRequest is the request to add a manual expense.
type ExpenseRequest struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  decimal.Decimal `json:"quantity"`
	IsCommon  bool            `json:"isCommon"`
}

// AddExpense adds one item to a session.
// POST /api/sessions/:session_id/expenses
func (h *Handler) AddExpense(c echo.Context) error {
	var req ExpenseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	item, err := h.engine.AddExpense(c.Request().Context(), c.Param("session_id"), engine.ItemInput{
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		IsCommon:  req.IsCommon,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

// ReceiptItemsRequest carries the receipt lines a user confirmed.
type ReceiptItemsRequest struct {
	Items []receipt.Line `json:"items"`
}

// AddReceiptItems bulk-creates items from a scanned receipt.
// POST /api/sessions/:session_id/receipt-items
func (h *Handler) AddReceiptItems(c echo.Context) error {
	var req ReceiptItemsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Items) == 0 {
		return badRequest(c, "items are required")
	}

	// Lines without a name or a positive price are dropped.
	res := receipt.Result{Status: receipt.StatusCompleted, Items: receipt.Normalize(req.Items)}

	items, err := h.engine.ImportItems(c.Request().Context(), c.Param("session_id"), res.ItemInputs())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"items": items,
	})
}

// DeleteItem removes an item and its selections.
// DELETE /api/items/:item_id
func (h *Handler) DeleteItem(c echo.Context) error {
	if err := h.engine.DeleteItem(c.Request().Context(), c.Param("item_id")); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}
