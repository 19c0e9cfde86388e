// SPDX-License-Identifier: AGPL-3.0-or-later

// Package qserror defines the query server's error taxonomy:
// NotFound, BadRequest, Unsupported and Internal, each mapping to an
// HTTP status code at the API boundary.
package qserror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/loveindex/queryserver/internal/log"
)

// Code classifies an error for the HTTP layer.
type Code int

const (
	// Internal is the zero value: an unexpected failure, mapped to 500.
	Internal Code = iota
	NotFound
	BadRequest
	Unsupported
)

func (c Code) StatusCode() int {
	switch c {
	case NotFound:
		return http.StatusNotFound
	case BadRequest, Unsupported:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// cerror wraps an error with a string prefix of the calling function
// name and an error Code.
type cerror struct {
	c    string
	e    error
	code Code
}

func (ce *cerror) Error() string {
	return ce.c + ": " + ce.e.Error()
}

func (ce *cerror) Unwrap() error {
	return ce.e
}

func (ce *cerror) Code() Code {
	return ce.code
}

//go:noinline
func New(msg string) error {
	return &cerror{c: log.Caller(3), e: errors.New(msg)}
}

//go:noinline
func Newf(msgf string, args ...any) error {
	return &cerror{c: log.Caller(3), e: fmt.Errorf(msgf, args...)}
}

//go:noinline
func Wrap(err error) error {
	return &cerror{c: log.Caller(3), e: err}
}

// WithCode attaches code to err, preserving the caller prefix if err
// is already a *cerror, or wrapping it fresh otherwise.
//
//go:noinline
func WithCode(err error, code Code) error {
	var ce *cerror
	if errors.As(err, &ce) {
		return &cerror{c: ce.c, e: ce.e, code: code}
	}
	return &cerror{c: log.Caller(3), e: err, code: code}
}

func NewNotFound(msg string) error    { return WithCode(New(msg), NotFound) }
func NewBadRequest(msg string) error  { return WithCode(New(msg), BadRequest) }
func NewUnsupported(msg string) error { return WithCode(New(msg), Unsupported) }

// CodeOf returns err's Code, defaulting to Internal for errors that
// never passed through WithCode.
func CodeOf(err error) Code {
	var ce *cerror
	if errors.As(err, &ce) {
		return ce.code
	}
	return Internal
}

// StatusCode returns the HTTP status code for err, defaulting to 500
// for errors that never passed through WithCode.
func StatusCode(err error) int {
	return CodeOf(err).StatusCode()
}
