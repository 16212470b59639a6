// Package apperr defines the error taxonomy shared by the storage, directory,
// document and publish layers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// Kind classifies a failure for callers.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindTransport
	KindConfiguration
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindTransport:
		return "transport"
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Operations reported in Error.Op.
const (
	OpList     = "list"
	OpCreate   = "create"
	OpDelete   = "delete"
	OpUpload   = "upload"
	OpDownload = "download"
	OpPublish  = "publish"
)

// Error is a classified failure. Msg is safe to show to a user.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil && e.Err.Error() != e.Msg {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports bad caller input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Configuration reports a missing or invalid setting.
func Configuration(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Transport wraps a network or adapter failure.
func Transport(op, msg string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Msg: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return KindConflict
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the user-facing message of err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return fallback
}

// IsPermissionDenied reports whether a store error message signals an
// authorization failure.
func IsPermissionDenied(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "permission denied")
}

var actions = map[string]string{
	OpList:     "list folder contents",
	OpCreate:   "create folders",
	OpDelete:   "delete files or folders",
	OpUpload:   "upload files",
	OpDownload: "read files",
}

// FromStore converts an object store failure into a classified Error for op.
// Already classified errors pass through unchanged.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if IsPermissionDenied(err) {
		action := actions[op]
		if action == "" {
			action = "perform this action"
		}
		return &Error{Kind: KindAuthorization, Op: op, Msg: "you do not have permission to " + action, Err: err}
	}
	if errors.Is(err, ErrNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Msg: "not found", Err: err}
	}
	return Transport(op, "failed to "+failedAction(op), err)
}

func failedAction(op string) string {
	switch op {
	case OpList:
		return "fetch files"
	case OpCreate:
		return "create folder"
	case OpDelete:
		return "delete"
	case OpUpload:
		return "upload file"
	case OpDownload:
		return "load file"
	}
	return op
}
