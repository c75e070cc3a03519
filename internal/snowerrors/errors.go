// Package snowerrors defines the typed error taxonomy raised by the
// planning and execution engine. Each kind is a distinct Go type so
// callers can branch on it with errors.As instead of matching strings.
package snowerrors

import (
	"fmt"
	"strings"
)

// MissingVarError records a required blueprint variable that was not
// supplied and has no default. Raised by the manifest compiler.
type MissingVarError struct {
	VarName string
	Err     error
}

func NewMissingVarError(varName string) MissingVarError {
	return MissingVarError{VarName: varName}
}

func (e MissingVarError) Error() string {
	return fmt.Sprintf("required var %q is missing and has no default value", e.VarName)
}

func (e MissingVarError) Unwrap() error { return e.Err }

// DuplicateResourceError records two distinct resource specs sharing a URN.
// Raised by the reference resolver during pointer/concrete merge.
type DuplicateResourceError struct {
	URN string
}

func NewDuplicateResourceError(urn string) DuplicateResourceError {
	return DuplicateResourceError{URN: urn}
}

func (e DuplicateResourceError) Error() string {
	return fmt.Sprintf("duplicate resource definitions for %s", e.URN)
}

// MissingResourceError records a desired resource referencing an object
// absent from both the manifest and live state. Raised by the planner.
type MissingResourceError struct {
	URN        string
	ReferredBy string
}

func NewMissingResourceError(urn, referredBy string) MissingResourceError {
	return MissingResourceError{URN: urn, ReferredBy: referredBy}
}

func (e MissingResourceError) Error() string {
	if e.ReferredBy == "" {
		return fmt.Sprintf("resource %s is referenced but not found in the manifest or live state", e.URN)
	}

	return fmt.Sprintf("resource %s referenced by %s is not found in the manifest or live state", e.URN, e.ReferredBy)
}

// InvalidResourceError records a structural violation of a resource
// definition, e.g. an explicit PUBLIC schema creation.
type InvalidResourceError struct {
	URN     string
	Title   string
	Message string
}

func NewInvalidResourceError(urn, message string) InvalidResourceError {
	return InvalidResourceError{URN: urn, Message: message}
}

func (e InvalidResourceError) Error() string {
	if strings.TrimSpace(e.URN) == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.URN, e.Message)
}

// NotADAGError records a dependency cycle detected while ordering the plan.
type NotADAGError struct {
	Cycle []string
}

func NewNotADAGError(cycle []string) NotADAGError {
	return NotADAGError{Cycle: cycle}
}

func (e NotADAGError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// WrongEditionError records an attribute or action requiring a higher
// warehouse edition than the current session holds.
type WrongEditionError struct {
	URN       string
	Attribute string
	Required  string
	Actual    string
}

func NewWrongEditionError(urn, attribute, required, actual string) WrongEditionError {
	return WrongEditionError{URN: urn, Attribute: attribute, Required: required, Actual: actual}
}

func (e WrongEditionError) Error() string {
	return fmt.Sprintf("%s requires edition %s (attribute %s), session is %s", e.URN, e.Required, e.Attribute, e.Actual)
}

// MissingPrivilegeError records that no role held by the session qualifies
// to perform a given action.
type MissingPrivilegeError struct {
	URN       string
	Action    string
	Privilege string
}

func NewMissingPrivilegeError(urn, action, privilege string) MissingPrivilegeError {
	return MissingPrivilegeError{URN: urn, Action: action, Privilege: privilege}
}

func (e MissingPrivilegeError) Error() string {
	return fmt.Sprintf("no available role can %s %s: requires %s", e.Action, e.URN, e.Privilege)
}

// NonConformingPlanError records a plan that violates scope or edition
// constraints before any statement is emitted.
type NonConformingPlanError struct {
	Reason string
}

func NewNonConformingPlanError(reason string) NonConformingPlanError {
	return NonConformingPlanError{Reason: reason}
}

func (e NonConformingPlanError) Error() string {
	return fmt.Sprintf("plan does not conform to blueprint constraints: %s", e.Reason)
}

// StatementFailureError records a wire-level failure while applying a
// batch. It carries the offending statement and the driver's error code.
type StatementFailureError struct {
	Statement string
	Code      string
	Role      string
	Err       error
}

func NewStatementFailureError(statement, code, role string, err error) StatementFailureError {
	return StatementFailureError{Statement: statement, Code: code, Role: role, Err: err}
}

func (e StatementFailureError) Error() string {
	msg := "statement failed"
	if e.Code != "" {
		msg = fmt.Sprintf("statement failed (code %s)", e.Code)
	}

	return fmt.Sprintf("%s while running as %s: %s: %v", msg, e.Role, e.Statement, e.Err)
}

func (e StatementFailureError) Unwrap() error { return e.Err }
