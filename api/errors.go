package api

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure by the stage that raised it.
type Kind int

const (
	KindConfig Kind = iota + 1
	KindDownload
	KindFilterConfig
	KindGeometryFilter
	KindProjection
	KindRender
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindDownload:
		return "DownloadError"
	case KindFilterConfig:
		return "FilterConfigError"
	case KindGeometryFilter:
		return "GeometryFilterError"
	case KindProjection:
		return "ProjectionError"
	case KindRender:
		return "RenderError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the single error type surfaced by the map-build stages.
// Use errors.Is against the Err* sentinels to test the kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	// Msg already carries the cause's text when built by Errorf.
	switch {
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches bare sentinels (no message, no cause) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrConfig         = &Error{Kind: KindConfig}
	ErrDownload       = &Error{Kind: KindDownload}
	ErrFilterConfig   = &Error{Kind: KindFilterConfig}
	ErrGeometryFilter = &Error{Kind: KindGeometryFilter}
	ErrProjection     = &Error{Kind: KindProjection}
	ErrRender         = &Error{Kind: KindRender}

	// ErrUnknownRepo is wrapped in a ConfigError when shape_data.repo is
	// not present in the repos table.
	ErrUnknownRepo = errors.New("unknown repo")
)

// Errorf builds an *Error of the given kind. A %w verb in format becomes the
// cause, so errors.Is sees through to it.
func Errorf(kind Kind, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Msg: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

// Wrap tags err with kind unless it already carries one.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}
