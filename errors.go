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

package constfold

import (
    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

type (
    // StructuralError occures when a method cannot be decoded or encoded, or
    // when a rewrite would leave a dangling jump target.
    StructuralError = ir.StructuralError

    // UnsupportedOperandError occures when an instruction cannot be handled
    // for the kind of its operands, such as the subroutine instructions.
    UnsupportedOperandError = ir.UnsupportedOperandError
)

// ErrDivideByZero is reported by constant evaluation of an integer division
// or remainder by zero, which is never folded.
var ErrDivideByZero = ir.ErrDivideByZero
