// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidKeyword indicates a KeywordVariation failed validation.
	ErrInvalidKeyword = errors.New("invalid keyword variation")

	// ErrInvalidPost indicates a ContentPost failed validation.
	ErrInvalidPost = errors.New("invalid content post")

	// ErrEmptyText indicates the keyword text is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyTitle indicates the post title is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrMissingBlog indicates the record has no tenant.
	ErrMissingBlog = errors.New("blog id is required")

	// ErrDifficultyRange indicates a difficulty outside 0-100.
	ErrDifficultyRange = errors.New("difficulty must be between 0 and 100")

	// ErrNegativeMetric indicates a negative volume or CPC.
	ErrNegativeMetric = errors.New("metric cannot be negative")

	// ErrEmptyQuery indicates the search text is blank.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrThresholdRange indicates a threshold outside (0, 1].
	ErrThresholdRange = errors.New("similarity threshold must be in (0, 1]")

	// ErrMaxResults indicates a non-positive result limit.
	ErrMaxResults = errors.New("max results must be positive")

	// ErrUnknownCorpus indicates an unrecognized corpus scope.
	ErrUnknownCorpus = errors.New("unknown corpus")
)

// ErrorKind classifies engine failures for callers.
type ErrorKind string

const (
	KindInvalidParameters     ErrorKind = "invalid_parameters"
	KindEmbeddingUnavailable  ErrorKind = "embedding_unavailable"
	KindRepositoryUnavailable ErrorKind = "repository_unavailable"
	KindNotReady              ErrorKind = "not_ready"
	KindSetupFailed           ErrorKind = "setup_failed"
)

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrInvalidParameters     = &Error{Kind: KindInvalidParameters}
	ErrEmbeddingUnavailable  = &Error{Kind: KindEmbeddingUnavailable}
	ErrRepositoryUnavailable = &Error{Kind: KindRepositoryUnavailable}
	ErrNotReady              = &Error{Kind: KindNotReady}
	ErrSetupFailed           = &Error{Kind: KindSetupFailed}
)

// Error is the typed error returned across the engine boundary.
type Error struct {
	Kind   ErrorKind
	Op     string
	Msg    string
	Err    error
	Report *ReadinessReport // set for KindNotReady and KindSetupFailed
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if err != nil {
		e.Msg = err.Error()
	}
	return e
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the caller may retry the operation later.
// Configuration and parameter errors are not retryable.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindEmbeddingUnavailable, KindRepositoryUnavailable:
		return true
	}
	return false
}

// KindOf extracts the ErrorKind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// InvalidParameters wraps a validation failure.
func InvalidParameters(op string, err error) *Error {
	return NewError(KindInvalidParameters, op, err)
}

// EmbeddingUnavailable wraps a provider failure.
func EmbeddingUnavailable(op string, err error) *Error {
	return NewError(KindEmbeddingUnavailable, op, err)
}

// RepositoryUnavailable wraps a storage failure.
func RepositoryUnavailable(op string, err error) *Error {
	return NewError(KindRepositoryUnavailable, op, err)
}

// NotReady reports that search cannot run, with the diagnostics attached.
func NotReady(op string, report *ReadinessReport) *Error {
	e := NewError(KindNotReady, op, nil)
	e.Report = report
	if report != nil && len(report.Recommendations) > 0 {
		e.Msg = report.Recommendations[0]
	}
	return e
}

// SetupFailed wraps the cause of a failed setup or verification step.
func SetupFailed(op string, err error, report *ReadinessReport) *Error {
	e := NewError(KindSetupFailed, op, err)
	e.Report = report
	return e
}
