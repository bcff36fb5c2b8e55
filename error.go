package sampledb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfig       = errors.New("invalid configuration")
	ErrDateFormat   = errors.New("invalid date format")
	ErrReprojection = errors.New("reprojection failed")
	ErrValidation   = errors.New("unregistered sample classes")
	ErrIO           = errors.New("cannot open source")

	ErrNilMappings     = errors.New("invalid mappings")
	ErrNoSystem        = errors.New("no classification system")
	ErrNoStore         = errors.New("no sample store")
	ErrUnknownMimeType = errors.New("no driver for content type")
	ErrDriverUsed      = errors.New("driver already loaded")
	ErrVoidSrid        = errors.New("layer with void srid")
)

// ConfigError reports a malformed or missing mapping, a missing
// classification system or any other unusable setting.
type ConfigError struct {
	Msg string
	Err error
}

func configErr(err error, format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *ConfigError) Error() string {
	if e.Err != nil && e.Msg != "" {
		return "config: " + e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return "config: " + e.Err.Error()
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

type DateFormatError struct {
	Value string
	Field string
}

func (e *DateFormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("date: %s %q does not match YYYY-MM-DD or DD-MM-YYYY", e.Field, e.Value)
	}
	return fmt.Sprintf("date: %q does not match YYYY-MM-DD or DD-MM-YYYY", e.Value)
}

func (e *DateFormatError) Is(target error) bool { return target == ErrDateFormat }

type ReprojectionError struct {
	Source string
	Target string
	Err    error
}

func (e *ReprojectionError) Error() string {
	return fmt.Sprintf("reproject %s -> %s: %v", e.Source, e.Target, e.Err)
}

func (e *ReprojectionError) Unwrap() error { return e.Err }

func (e *ReprojectionError) Is(target error) bool { return target == ErrReprojection }

// ValidationError lists every class of a source not registered in the
// classification system.
type ValidationError struct {
	SystemID     int64
	Unregistered []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("classes not registered in classification system %d: %s",
		e.SystemID, strings.Join(e.Unregistered, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return "could not open " + e.Path
	}
	return fmt.Sprintf("could not open %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }
