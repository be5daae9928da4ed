package shadow

import (
	"errors"
	"strings"
)

// Fatal conditions of a weave. None of them is recoverable: the partially
// built target module must be discarded.
var (
	ErrUnresolvedGenericParameter      = errors.New("unknown generic parameter reference")
	ErrMissingForwardingImplementation = errors.New("type requires a fake implementation but none was found")
	ErrAmbiguousMemberMatch            = errors.New("ambiguous corresponding member")
	ErrMissingMemberMatch              = errors.New("unable to find corresponding member")
	ErrInvalidReference                = errors.New("invalid type reference")

	// Pass sequencing violations.
	ErrShadowMapSealed = errors.New("shadow map is sealed")
	ErrShadowMapOpen   = errors.New("shadow map is not sealed")
)

// Error carries the type and member a fatal condition was raised for.
type Error struct {
	Err    error
	Type   string
	Member string
	Detail string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("shadow: ")
	sb.WriteString(e.Err.Error())
	if e.Type != "" {
		sb.WriteString(": type ")
		sb.WriteString(e.Type)
	}
	if e.Member != "" {
		sb.WriteString(" member ")
		sb.WriteString(e.Member)
	}
	if e.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Detail)
		sb.WriteString(")")
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }
