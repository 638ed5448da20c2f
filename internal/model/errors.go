package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedOutline     = errors.New("malformed outline")
	ErrUnresolvedRuleTarget = errors.New("unresolved rule target")
	ErrDuplicateInsertion   = errors.New("duplicate insertion")
	ErrIntegrityViolation   = errors.New("integrity violation")
	ErrDegradedRun          = errors.New("degraded run")
	ErrInvalidRequirement   = errors.New("invalid requirement")
	ErrInvalidConfig        = errors.New("invalid config")
)

// OutlineError describes why an outline could not be loaded
type OutlineError struct {
	NodeID string
	Reason string
}

func (e *OutlineError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedOutline, e.Reason)
	}
	return fmt.Sprintf("%s: node %q: %s", ErrMalformedOutline, e.NodeID, e.Reason)
}

func (e *OutlineError) Unwrap() error { return ErrMalformedOutline }

// RuleTargetError is returned at bind time for a rule pointing at a node
// that is not part of the loaded outline
type RuleTargetError struct {
	RuleID string
	Target string
}

func (e *RuleTargetError) Error() string {
	return fmt.Sprintf("%s: rule %q targets unknown node %q", ErrUnresolvedRuleTarget, e.RuleID, e.Target)
}

func (e *RuleTargetError) Unwrap() error { return ErrUnresolvedRuleTarget }

// DuplicateInsertionError reports a requirement inserted into the tree twice
type DuplicateInsertionError struct {
	RequirementID string
	FirstNodeID   string
	SecondNodeID  string
}

func (e *DuplicateInsertionError) Error() string {
	return fmt.Sprintf("%s: requirement %q already placed in %q, refused insertion into %q",
		ErrDuplicateInsertion, e.RequirementID, e.FirstNodeID, e.SecondNodeID)
}

func (e *DuplicateInsertionError) Unwrap() error { return ErrDuplicateInsertion }

// IntegrityError lists every invariant the assembled tree broke
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %d problem(s): %s", ErrIntegrityViolation, len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }

// DegradedRunError is returned when too many similarity calls failed
type DegradedRunError struct {
	Calls    int64
	Failures int64
	Ceiling  float64
}

// Ratio returns the observed failure ratio
func (e *DegradedRunError) Ratio() float64 {
	if e.Calls == 0 {
		return 0
	}
	return float64(e.Failures) / float64(e.Calls)
}

func (e *DegradedRunError) Error() string {
	return fmt.Sprintf("%s: %d/%d similarity calls failed (%.1f%% > ceiling %.1f%%)",
		ErrDegradedRun, e.Failures, e.Calls, e.Ratio()*100, e.Ceiling*100)
}

func (e *DegradedRunError) Unwrap() error { return ErrDegradedRun }
