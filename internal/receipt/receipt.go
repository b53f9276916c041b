// Package receipt is the boundary to the receipt recognition service.
// Images are submitted and then polled until line items are available.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/engine"
)

// Status of a submitted receipt.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrScanFailed is returned by Await when the scanner gives up on a receipt.
var ErrScanFailed = errors.New("receipt scan failed")

// Line is one recognised receipt line.
type Line struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	IsCommon bool            `json:"isCommon"`
}

// Submission acknowledges an uploaded image.
type Submission struct {
	Token  string `json:"token"`
	Status Status `json:"status"`
}

// Result is the scanner's answer for a token.
type Result struct {
	Status  Status `json:"status"`
	Items   []Line `json:"items,omitempty"`
	Message string `json:"message,omitempty"`
}

// Scanner recognises receipt images.
type Scanner interface {
	Submit(ctx context.Context, sessionID string, image io.Reader) (*Submission, error)
	Poll(ctx context.Context, token string) (*Result, error)
}

// Await polls the scanner every interval until the receipt completes or
// fails. A non-positive interval polls every two seconds.
func Await(ctx context.Context, scanner Scanner, token string, interval time.Duration) (*Result, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := scanner.Poll(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to poll receipt %s: %w", token, err)
		}

		switch res.Status {
		case StatusCompleted:
			res.Items = Normalize(res.Items)
			return res, nil
		case StatusFailed:
			if res.Message != "" {
				return nil, fmt.Errorf("%w: %s", ErrScanFailed, res.Message)
			}
			return nil, ErrScanFailed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Normalize drops lines without a positive price, trims names and
// defaults a missing quantity to 1.
func Normalize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if !l.Price.IsPositive() {
			continue
		}
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			continue
		}
		if !l.Quantity.IsPositive() {
			l.Quantity = decimal.NewFromInt(1)
		}
		out = append(out, l)
	}
	return out
}

// ItemInputs converts recognised lines into expense items.
func (r *Result) ItemInputs() []engine.ItemInput {
	inputs := make([]engine.ItemInput, 0, len(r.Items))
	for _, l := range r.Items {
		inputs = append(inputs, engine.ItemInput{
			Name:      l.Name,
			UnitPrice: l.Price,
			Quantity:  l.Quantity,
			IsCommon:  l.IsCommon,
		})
	}
	return inputs
}
