package errors

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the predict pipeline can report.
type Kind int

const (
	KindInternal Kind = iota
	KindMalformedPayload
	KindModelNotConfigured
	KindArtifactMissing
	KindInferenceFailure
	KindSerializationFailure
)

func (k Kind) String() string {
	switch k {
	case KindMalformedPayload:
		return "MalformedPayload"
	case KindModelNotConfigured:
		return "ModelNotConfigured"
	case KindArtifactMissing:
		return "ArtifactMissing"
	case KindInferenceFailure:
		return "InferenceFailure"
	case KindSerializationFailure:
		return "SerializationFailure"
	default:
		return "InternalError"
	}
}

var ErrModelNotConfigured = &Error{Kind: KindModelNotConfigured, Msg: "model results path is not configured"}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrapf(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
