// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
)

// Recoverable errors, construction can be retried with other input
var (
	ErrShaderExtension = errors.New("shader file is not a compiled SPIR-V binary")
	ErrShaderEmpty     = errors.New("shader source returned no bytes")
	ErrNoShaders       = errors.New("no shader stages given")
	ErrNoSource        = errors.New("no shader source given")
)

// FatalError is a failure that retrying with the same shaders
// and device cannot fix.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err is, or wraps, a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
