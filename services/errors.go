package services

import "errors"

// Domain failures returned by the matching core. Controllers map these to
// HTTP statuses; anything not in this list is an internal storage error.
//
// ErrDuplicateFlow and ErrConstraintViolation are expected outcomes under
// concurrent callers, not bugs: a DuplicateFlow caller should fetch the
// existing flow, and a ConstraintViolation is healed by EnforceConstraint.
var (
	ErrTeamNotFound        = errors.New("team not found")
	ErrNotAMember          = errors.New("user is not a member of this team")
	ErrNotActiveMember     = errors.New("team is not the user's active team")
	ErrGenderIncompatible  = errors.New("team gender policies cannot match")
	ErrDuplicateFlow       = errors.New("a live flow already links these teams")
	ErrInvalidJudgement    = errors.New("judgement must be like or pass")
	ErrFlowNotFound        = errors.New("matching flow not found")
	ErrFlowNotConfirmed    = errors.New("flow is not confirmed")
	ErrConstraintViolation = errors.New("active-team constraint violated")
)
