package scene

import (
	"errors"
	"fmt"
)

// Kind classifies scene generation failures.
type Kind string

const (
	KindLocationStructureInvalid  Kind = "location_structure_invalid"
	KindCharacterStructureInvalid Kind = "character_structure_invalid"
	KindPlayerRoleForbidden       Kind = "player_role_forbidden"
	KindRenderTimeout             Kind = "render_timeout"
	KindRenderFailed              Kind = "render_failed"
	KindLLMTimeout                Kind = "llm_timeout"
	KindLLMFailed                 Kind = "llm_failed"
	KindStoreUnavailable          Kind = "store_unavailable"
	KindInvalidTransition         Kind = "invalid_transition"
	KindSceneNotFound             Kind = "scene_not_found"
	KindEntityNotFound            Kind = "entity_not_found"
	KindInvalidToolArguments      Kind = "invalid_tool_arguments"
	KindFinalizePrecondition      Kind = "finalize_precondition"
	KindStepBudgetExceeded        Kind = "step_budget_exceeded"
	KindCancelled                 Kind = "cancelled"
)

// Error is a classified failure. Two errors match under errors.Is when their
// kinds are equal, so the sentinels below can be used as targets.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var (
	ErrLocationStructureInvalid  = &Error{Kind: KindLocationStructureInvalid}
	ErrCharacterStructureInvalid = &Error{Kind: KindCharacterStructureInvalid}
	ErrPlayerRoleForbidden       = &Error{Kind: KindPlayerRoleForbidden}
	ErrRenderTimeout             = &Error{Kind: KindRenderTimeout}
	ErrRenderFailed              = &Error{Kind: KindRenderFailed}
	ErrLLMTimeout                = &Error{Kind: KindLLMTimeout}
	ErrLLMFailed                 = &Error{Kind: KindLLMFailed}
	ErrStoreUnavailable          = &Error{Kind: KindStoreUnavailable}
	ErrInvalidTransition         = &Error{Kind: KindInvalidTransition}
	ErrSceneNotFound             = &Error{Kind: KindSceneNotFound}
	ErrEntityNotFound            = &Error{Kind: KindEntityNotFound}
	ErrInvalidToolArguments      = &Error{Kind: KindInvalidToolArguments}
	ErrFinalizePrecondition      = &Error{Kind: KindFinalizePrecondition}
	ErrStepBudgetExceeded        = &Error{Kind: KindStepBudgetExceeded}
	ErrCancelled                 = &Error{Kind: KindCancelled}
)
