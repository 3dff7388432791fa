// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"errors"
	"fmt"
)

// Sentinel errors for common parse failure conditions.
//
// Check with errors.Is() to determine the category of failure without
// inspecting error messages.
var (
	// ErrUnsupportedLanguage indicates that no parser is registered for
	// the requested language or file extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseFailed indicates that parsing failed completely and no
	// usable result could be produced. Partial failures are reported in
	// ParseResult.Errors instead.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent indicates that the provided content cannot be
	// processed (nil slice, non-UTF-8 encoding).
	ErrInvalidContent = errors.New("invalid content")

	// ErrInvalidResult indicates that a ParseResult failed validation.
	ErrInvalidResult = errors.New("invalid parse result")

	// ErrFileTooLarge is returned when input content exceeds the
	// parser's maximum file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")
)

// ParseError wraps an underlying error with source location context.
//
// Line is 1-indexed and may be 0 when the error is not tied to a specific
// line.
type ParseError struct {
	FilePath string
	Line     int
	Message  string
	Cause    error
}

// Error returns "file:line: message", omitting the line when unknown.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is / errors.As.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// WrapParseError wraps an error with file context. ParseErrors pass
// through unchanged; nil stays nil.
func WrapParseError(err error, filePath string) error {
	if err == nil {
		return nil
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return err
	}
	return &ParseError{
		FilePath: filePath,
		Message:  err.Error(),
		Cause:    err,
	}
}
