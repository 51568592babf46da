/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ir

import (
    `errors`
    `fmt`
)

// ErrDivideByZero is returned by Eval for integer division or remainder by zero,
// which must be left to trap at run time.
var ErrDivideByZero = errors.New("integer division by zero")

// StructuralError occures when an edit would leave the instruction stream with
// a dangling reference, or when the stream cannot be decoded or encoded.
type StructuralError struct {
    Op     string
    Pos    int
    Reason string
}

func (self StructuralError) Error() string {
    if self.Pos < 0 {
        return fmt.Sprintf("StructuralError(%s): %s", self.Op, self.Reason)
    } else {
        return fmt.Sprintf("StructuralError(%s) at position %d: %s", self.Op, self.Pos, self.Reason)
    }
}

// UnsupportedOperandError occures when an operation is applied to a value kind
// it is not defined for.
type UnsupportedOperandError struct {
    Op     string
    Kind   Kind
    Reason string
}

func (self UnsupportedOperandError) Error() string {
    if self.Reason != "" {
        return fmt.Sprintf("UnsupportedOperandError(%s, %s): %s", self.Op, self.Kind, self.Reason)
    } else {
        return fmt.Sprintf("UnsupportedOperandError(%s, %s): operand kind not supported", self.Op, self.Kind)
    }
}

func errStructural(op string, pos int, reason string) error {
    return StructuralError {
        Op     : op,
        Pos    : pos,
        Reason : reason,
    }
}

func errOperand(op string, kind Kind, reason string) error {
    return UnsupportedOperandError {
        Op     : op,
        Kind   : kind,
        Reason : reason,
    }
}

// NewStructuralError creates a StructuralError not tied to a stream position.
func NewStructuralError(op string, reason string) error {
    return errStructural(op, -1, reason)
}

// NewUnsupportedOperandError creates an UnsupportedOperandError.
func NewUnsupportedOperandError(op string, kind Kind, reason string) error {
    return errOperand(op, kind, reason)
}
