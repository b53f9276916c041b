// Package policy evaluates the rego rules that decide whether a bill
// mutation may proceed.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/snekaaa/banya-check/internal/domain"
)

// Actions checked against the policy.
const (
	ActionClaim         = "claim"
	ActionRelease       = "release"
	ActionConfirm       = "confirm"
	ActionUnconfirm     = "unconfirm"
	ActionAddExpense    = "add_expense"
	ActionDeleteItem    = "delete_item"
	ActionRecordPayment = "record_payment"
	ActionJoin          = "join"
	ActionSetAttendance = "set_attendance"
)

// Decisions the policy may return.
const (
	DecisionAllow              = "allow"
	DecisionSessionClosed      = "session_closed"
	DecisionSelectionConfirmed = "selection_confirmed"
)

// Input is the document the policy is evaluated against.
type Input struct {
	Action             string `json:"action"`
	SessionStatus      string `json:"session_status"`
	SelectionConfirmed bool   `json:"selection_confirmed"`
	Role               string `json:"role,omitempty"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.allocation_policy.decision"),
		rego.Module("allocation_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the policy decision for input. A policy that yields
// nothing allows the mutation.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"action":              input.Action,
		"session_status":      input.SessionStatus,
		"selection_confirmed": input.SelectionConfirmed,
		"role":                input.Role,
	}))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("policy returned %T, want string", results[0].Expressions[0].Value)
}

// Check evaluates input and turns a denial into its domain error.
func (e *Engine) Check(ctx context.Context, input Input) error {
	decision, err := e.Evaluate(ctx, input)
	if err != nil {
		return err
	}
	return DecisionError(decision)
}

// DecisionError maps a decision to the error a caller should see.
func DecisionError(decision string) error {
	switch decision {
	case DecisionAllow:
		return nil
	case DecisionSessionClosed:
		return domain.ErrSessionClosed
	case DecisionSelectionConfirmed:
		return domain.ErrSelectionConfirmed
	}
	return fmt.Errorf("policy denied: %s", decision)
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package allocation_policy

default decision = "allow"

# Closed sessions only accept payment bookkeeping.
decision = "session_closed" {
	input.session_status == "closed"
	not payment_action
} else = "selection_confirmed" {
	edits_selection
	input.selection_confirmed
}

payment_action {
	input.action == "record_payment"
}

edits_selection {
	input.action == "claim"
}

edits_selection {
	input.action == "release"
}
`
