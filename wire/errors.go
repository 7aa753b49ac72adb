// File: wire/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wire

import "fmt"

// Kind classifies a codec failure.
type Kind uint8

const (
	KindBadInteger Kind = iota + 1
	KindBadFloat
	KindBadString
	KindInvalidType
	KindUnsizedSequence
	KindUnsizedMap
	KindUnknownTag
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindBadInteger:
		return "bad integer"
	case KindBadFloat:
		return "bad float"
	case KindBadString:
		return "bad string"
	case KindInvalidType:
		return "invalid type"
	case KindUnsizedSequence:
		return "unsized sequence"
	case KindUnsizedMap:
		return "unsized map"
	case KindUnknownTag:
		return "unknown tag"
	case KindCustom:
		return "custom"
	default:
		return "unknown kind"
	}
}

// Error is returned by every encode and decode failure.
// Offset is the input position where decoding stopped (-1 for encode errors).
type Error struct {
	Kind   Kind
	Offset int
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("wire: %s at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("wire: %s at offset %d: %s", e.Kind, e.Offset, e.Reason)
}

// Is reports whether target is a *Error of the same Kind, so the
// sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrBadInteger      = &Error{Kind: KindBadInteger}
	ErrBadFloat        = &Error{Kind: KindBadFloat}
	ErrBadString       = &Error{Kind: KindBadString}
	ErrInvalidType     = &Error{Kind: KindInvalidType}
	ErrUnsizedSequence = &Error{Kind: KindUnsizedSequence}
	ErrUnsizedMap      = &Error{Kind: KindUnsizedMap}
	ErrUnknownTag      = &Error{Kind: KindUnknownTag}
	ErrCustom          = &Error{Kind: KindCustom}
)
