package api

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// ErrClosed is returned by every pipeline stage once Close has been called
// on it. Use-after-release is a deterministic local failure, never a crash.
var ErrClosed = stderrors.New("tokenizers: instance has been closed")

// ErrorKind classifies a pipeline failure. The set is closed: configuration
// problems surface at construction, stage errors at run time, and I/O errors
// when loading or saving. There is no transient class; every failure is
// deterministic given input and configuration.
type ErrorKind uint8

const (
	ConfigError ErrorKind = iota
	NormalizationError
	PreTokenizationError
	BuildError
	TrainingError
	SaveError
	LoadError
	EncodingError
	DecodingError
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigError:
		return "configuration"
	case NormalizationError:
		return "normalization"
	case PreTokenizationError:
		return "pre-tokenization"
	case BuildError:
		return "build"
	case TrainingError:
		return "training"
	case SaveError:
		return "save"
	case LoadError:
		return "load"
	case EncodingError:
		return "encoding"
	case DecodingError:
		return "decoding"
	}
	return "unknown"
}

// Error tags an underlying error with its pipeline kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// WrapError tags err with kind. A nil err stays nil; an err already tagged
// keeps its original kind.
func WrapError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if stderrors.As(err, &tagged) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	var tagged *Error
	return stderrors.As(err, &tagged) && tagged.Kind == kind
}
