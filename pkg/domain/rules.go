package domain

import (
	"context"
	"sort"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock rejects the order under evaluation.
	SeverityBlock Severity = "block"
	// SeverityWarn is logged but the order is accepted.
	SeverityWarn Severity = "warn"
)

// Violation is a rule finding scoped to one component field of an order.
type Violation struct {
	Rule           string
	Severity       Severity
	Message        string
	OrderID        string
	ComponentIndex int
	Field          Field
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether any violation blocks the order.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// OrderErrors groups blocking violations per order, sorted by order id.
func (r Result) OrderErrors() []OrderError {
	byOrder := make(map[string]*OrderError)
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			continue
		}
		oe, ok := byOrder[v.OrderID]
		if !ok {
			oe = &OrderError{OrderID: v.OrderID}
			byOrder[v.OrderID] = oe
		}
		oe.Add(v.ComponentIndex, v.Field, v.Message)
	}
	out := make([]OrderError, 0, len(byOrder))
	for _, oe := range byOrder {
		out = append(out, *oe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// RuleView provides read-only access to persisted containers for rule evaluation.
type RuleView interface {
	FindContainerByBarcode(labID, barcode string) (Container, bool)
	FindContainerByLocation(locationID string) (Container, bool)
}

// Rule evaluates one check-in request before it is committed.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, req CheckInRequest) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, req CheckInRequest) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, req)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
