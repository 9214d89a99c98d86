// Package autherr defines the closed error taxonomy of the
// authentication core. Every failure crossing a package boundary is one
// of the kinds below; transport code switches on KindOf to map errors to
// responses instead of inspecting ad hoc fields.
package autherr

import "errors"

// Kind identifies the category of an authentication failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConfiguration: invalid or missing signing secret at startup.
	// Fatal, the server must not start serving authenticated routes.
	KindConfiguration
	// KindValidation: malformed registration or login input.
	KindValidation
	// KindAuth: wrong credentials at login.
	KindAuth
	// KindInvalidCredential: refresh rotation presented an unknown,
	// already-rotated, or revoked token. Deliberately indistinguishable.
	KindInvalidCredential
	// KindExpiredCredential: refresh rotation presented an expired token.
	KindExpiredCredential
	// KindUnauthenticated: missing or invalid access token.
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindInvalidCredential:
		return "invalid credential"
	case KindExpiredCredential:
		return "expired credential"
	case KindUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Error carries a Kind and a caller-facing message. Messages on the
// authentication path are intentionally low-information.
type Error struct {
	kind Kind
	msg  string
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

// Sentinels returned directly by the core. errors.Is against these
// matches only the sentinel itself; use KindOf for kind-level matching.
var (
	ErrAuth              = New(KindAuth, "invalid email or password")
	ErrInvalidCredential = New(KindInvalidCredential, "refresh token is not valid")
	ErrExpiredCredential = New(KindExpiredCredential, "refresh token expired")
	ErrUnauthenticated   = New(KindUnauthenticated, "not authenticated")
)

// KindOf unwraps err and returns the Kind of the first *Error found,
// or KindUnknown when err is not part of the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}
