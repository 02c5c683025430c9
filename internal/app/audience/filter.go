// Package audience implements the predicate language used by email
// automations to select recipients. A filter is a conjunction of
// field/operator/value conditions over a flat projection of the owning user
// and their application. Filters are validated when an automation is saved;
// evaluation at dispatch time is total and never fails.
package audience

import (
	"fmt"
	"strconv"
	"strings"
)

// Fields a condition may reference.
const (
	FieldUserRole             = "user.role"
	FieldUserEmail            = "user.email"
	FieldAppStatus            = "application.status"
	FieldAppSubStatus         = "application.sub_status"
	FieldAppIsReturning       = "application.is_returning"
	FieldAppHasPaid           = "application.has_paid"
	FieldAppCompletionPercent = "application.completion_percentage"
)

// Operator is a comparison applied to a single field.
type Operator string

const (
	OpEq       Operator = "EQ"
	OpNeq      Operator = "NEQ"
	OpIn       Operator = "IN"
	OpContains Operator = "CONTAINS"
	OpIsTrue   Operator = "IS_TRUE"
	OpIsFalse  Operator = "IS_FALSE"
	OpGte      Operator = "GTE"
	OpLte      Operator = "LTE"
)

var knownFields = map[string]bool{
	FieldUserRole:             true,
	FieldUserEmail:            true,
	FieldAppStatus:            true,
	FieldAppSubStatus:         true,
	FieldAppIsReturning:       true,
	FieldAppHasPaid:           true,
	FieldAppCompletionPercent: true,
}

var boolFields = map[string]bool{
	FieldAppIsReturning: true,
	FieldAppHasPaid:     true,
}

var numericFields = map[string]bool{
	FieldAppCompletionPercent: true,
}

// Condition is one node of the filter: a field, an operator, and the value(s)
// to compare against. Value is used by the scalar operators, Values by IN.
type Condition struct {
	Field  string   `json:"field"`
	Op     Operator `json:"op"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Filter is a conjunction of conditions. The zero value (no conditions) is
// the "empty filter": event-triggered automations fall back to the
// application owner, scheduled ones to every active applicant family.
type Filter struct {
	Conditions []Condition `json:"conditions,omitempty"`
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.Conditions) == 0
}

// Validate checks the filter structure. It is called when an automation is
// saved so that dispatch never encounters a malformed filter.
func (f Filter) Validate() error {
	for i, c := range f.Conditions {
		if !knownFields[c.Field] {
			return fmt.Errorf("condition %d: unknown field %q", i, c.Field)
		}
		switch c.Op {
		case OpEq, OpNeq, OpContains:
			if c.Value == "" {
				return fmt.Errorf("condition %d: operator %s requires a value", i, c.Op)
			}
		case OpIn:
			if len(c.Values) == 0 {
				return fmt.Errorf("condition %d: operator IN requires at least one value", i)
			}
		case OpIsTrue, OpIsFalse:
			if !boolFields[c.Field] {
				return fmt.Errorf("condition %d: operator %s requires a boolean field, got %q", i, c.Op, c.Field)
			}
		case OpGte, OpLte:
			if !numericFields[c.Field] {
				return fmt.Errorf("condition %d: operator %s requires a numeric field, got %q", i, c.Op, c.Field)
			}
			if _, err := strconv.Atoi(c.Value); err != nil {
				return fmt.Errorf("condition %d: operator %s requires a numeric value, got %q", i, c.Op, c.Value)
			}
		default:
			return fmt.Errorf("condition %d: unknown operator %q", i, c.Op)
		}
	}
	return nil
}

// Target is the flat projection a filter is evaluated against.
type Target struct {
	UserRole             string
	UserEmail            string
	ApplicationStatus    string
	ApplicationSubStatus string
	IsReturning          bool
	HasPaid              bool
	CompletionPercentage int
}

// Matches evaluates the filter against a target. Every condition must hold.
// Evaluation is total: a condition that cannot be interpreted simply does not
// match, it never errors.
func (f Filter) Matches(t Target) bool {
	for _, c := range f.Conditions {
		if !matchCondition(c, t) {
			return false
		}
	}
	return true
}

func matchCondition(c Condition, t Target) bool {
	if boolFields[c.Field] {
		v := boolValue(c.Field, t)
		switch c.Op {
		case OpIsTrue:
			return v
		case OpIsFalse:
			return !v
		case OpEq:
			return strconv.FormatBool(v) == strings.ToLower(c.Value)
		case OpNeq:
			return strconv.FormatBool(v) != strings.ToLower(c.Value)
		}
		return false
	}

	if numericFields[c.Field] {
		n := t.CompletionPercentage
		want, err := strconv.Atoi(c.Value)
		if err != nil {
			return false
		}
		switch c.Op {
		case OpEq:
			return n == want
		case OpNeq:
			return n != want
		case OpGte:
			return n >= want
		case OpLte:
			return n <= want
		}
		return false
	}

	v := stringValue(c.Field, t)
	switch c.Op {
	case OpEq:
		return strings.EqualFold(v, c.Value)
	case OpNeq:
		return !strings.EqualFold(v, c.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case OpIn:
		for _, candidate := range c.Values {
			if strings.EqualFold(v, candidate) {
				return true
			}
		}
		return false
	}
	return false
}

func boolValue(field string, t Target) bool {
	switch field {
	case FieldAppIsReturning:
		return t.IsReturning
	case FieldAppHasPaid:
		return t.HasPaid
	}
	return false
}

func stringValue(field string, t Target) string {
	switch field {
	case FieldUserRole:
		return t.UserRole
	case FieldUserEmail:
		return t.UserEmail
	case FieldAppStatus:
		return t.ApplicationStatus
	case FieldAppSubStatus:
		return t.ApplicationSubStatus
	}
	return ""
}
