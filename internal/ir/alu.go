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
    `math`
)

type AluOp uint8

const (
    A_add AluOp = iota
    A_sub
    A_mul
    A_div
    A_rem
    A_neg
    A_shl
    A_shr
    A_ushr
    A_and
    A_or
    A_xor
)

func (self AluOp) String() string {
    switch self {
        case A_add  : return "add"
        case A_sub  : return "sub"
        case A_mul  : return "mul"
        case A_div  : return "div"
        case A_rem  : return "rem"
        case A_neg  : return "neg"
        case A_shl  : return "shl"
        case A_shr  : return "shr"
        case A_ushr : return "ushr"
        case A_and  : return "and"
        case A_or   : return "or"
        case A_xor  : return "xor"
        default     : panic("unreachable")
    }
}

// Arity is the number of operands the operation pops.
func (self AluOp) Arity() int {
    if self == A_neg {
        return 1
    } else {
        return 2
    }
}

func (self AluOp) isShift() bool {
    return self == A_shl || self == A_shr || self == A_ushr
}

// Eval computes `x op y` for operands of kind k, where x is the deeper stack
// operand. y is ignored for unary operations.
func Eval(op AluOp, k Kind, x Value, y Value) (Value, error) {
    yk := k

    /* shift distances are always ints */
    if op.isShift() {
        yk = K_int
    }

    /* check the operand kinds */
    if x.K != k {
        return Value{}, errOperand(op.String(), x.K, "expected " + k.String())
    } else if op.Arity() == 2 && y.K != yk {
        return Value{}, errOperand(op.String(), y.K, "expected " + yk.String())
    }

    /* evaluate by kind */
    switch k {
        case K_int    : return evalInt(op, int32(x.I), int32(y.I))
        case K_long   : return evalLong(op, x.I, y.I)
        case K_float  : return evalFloat(op, float32(x.F), float32(y.F))
        case K_double : return evalDouble(op, x.F, y.F)
        default       : return Value{}, errOperand(op.String(), k, "")
    }
}

func evalInt(op AluOp, x int32, y int32) (Value, error) {
    switch op {
        case A_add  : return Int(x + y), nil
        case A_sub  : return Int(x - y), nil
        case A_mul  : return Int(x * y), nil
        case A_neg  : return Int(-x), nil
        case A_shl  : return Int(x << (uint32(y) & 0x1f)), nil
        case A_shr  : return Int(x >> (uint32(y) & 0x1f)), nil
        case A_ushr : return Int(int32(uint32(x) >> (uint32(y) & 0x1f))), nil
        case A_and  : return Int(x & y), nil
        case A_or   : return Int(x | y), nil
        case A_xor  : return Int(x ^ y), nil
    }

    /* division traps on zero */
    if y == 0 {
        return Value{}, ErrDivideByZero
    }

    /* MinInt32 / -1 wraps in Go exactly like the JVM */
    switch op {
        case A_div : return Int(x / y), nil
        case A_rem : return Int(x % y), nil
        default    : panic("unreachable")
    }
}

func evalLong(op AluOp, x int64, y int64) (Value, error) {
    switch op {
        case A_add  : return Long(x + y), nil
        case A_sub  : return Long(x - y), nil
        case A_mul  : return Long(x * y), nil
        case A_neg  : return Long(-x), nil
        case A_shl  : return Long(x << (uint64(y) & 0x3f)), nil
        case A_shr  : return Long(x >> (uint64(y) & 0x3f)), nil
        case A_ushr : return Long(int64(uint64(x) >> (uint64(y) & 0x3f))), nil
        case A_and  : return Long(x & y), nil
        case A_or   : return Long(x | y), nil
        case A_xor  : return Long(x ^ y), nil
    }

    /* division traps on zero */
    if y == 0 {
        return Value{}, ErrDivideByZero
    }

    /* same as ints */
    switch op {
        case A_div : return Long(x / y), nil
        case A_rem : return Long(x % y), nil
        default    : panic("unreachable")
    }
}

func evalFloat(op AluOp, x float32, y float32) (Value, error) {
    switch op {
        case A_add : return Float(float32(x + y)), nil
        case A_sub : return Float(float32(x - y)), nil
        case A_mul : return Float(float32(x * y)), nil
        case A_div : return Float(float32(x / y)), nil
        case A_rem : return Float(float32(math.Mod(float64(x), float64(y)))), nil
        case A_neg : return Float(-x), nil
        default    : return Value{}, errOperand(op.String(), K_float, "bitwise operation on float")
    }
}

func evalDouble(op AluOp, x float64, y float64) (Value, error) {
    switch op {
        case A_add : return Double(float64(x + y)), nil
        case A_sub : return Double(float64(x - y)), nil
        case A_mul : return Double(float64(x * y)), nil
        case A_div : return Double(float64(x / y)), nil
        case A_rem : return Double(math.Mod(x, y)), nil
        case A_neg : return Double(-x), nil
        default    : return Value{}, errOperand(op.String(), K_double, "bitwise operation on double")
    }
}

// Compare implements lcmp, fcmpl, fcmpg, dcmpl and dcmpg. The NaN bias is the
// result when either operand is NaN, -1 for the "l" forms and 1 for "g".
func Compare(k Kind, bias int8, x Value, y Value) (Value, error) {
    if x.K != k || y.K != k {
        return Value{}, errOperand("cmp", x.K, "expected " + k.String())
    }

    /* integer comparison */
    if k == K_long {
        switch {
            case x.I < y.I : return Int(-1), nil
            case x.I > y.I : return Int(1), nil
            default        : return Int(0), nil
        }
    }

    /* floating point comparison */
    if k != K_float && k != K_double {
        return Value{}, errOperand("cmp", k, "")
    }

    /* unordered */
    if math.IsNaN(x.F) || math.IsNaN(y.F) {
        return Int(int32(bias)), nil
    }

    /* ordered */
    switch {
        case x.F < y.F : return Int(-1), nil
        case x.F > y.F : return Int(1), nil
        default        : return Int(0), nil
    }
}

type Cond uint8

const (
    C_eq Cond = iota
    C_ne
    C_lt
    C_ge
    C_gt
    C_le
)

func (self Cond) String() string {
    switch self {
        case C_eq : return "eq"
        case C_ne : return "ne"
        case C_lt : return "lt"
        case C_ge : return "ge"
        case C_gt : return "gt"
        case C_le : return "le"
        default   : panic("unreachable")
    }
}

// Negate returns the condition that holds exactly when this one does not.
func (self Cond) Negate() Cond {
    switch self {
        case C_eq : return C_ne
        case C_ne : return C_eq
        case C_lt : return C_ge
        case C_ge : return C_lt
        case C_gt : return C_le
        case C_le : return C_gt
        default   : panic("unreachable")
    }
}

// Test evaluates the branch predicate on two int operands, x being the deeper
// one. The single operand forms compare against Int(0).
func (self Cond) Test(x Value, y Value) (bool, error) {
    if x.K != K_int || y.K != K_int {
        return false, errOperand("if" + self.String(), x.K, "only int predicates can be evaluated")
    }

    /* signed comparison */
    switch a, b := int32(x.I), int32(y.I); self {
        case C_eq : return a == b, nil
        case C_ne : return a != b, nil
        case C_lt : return a < b, nil
        case C_ge : return a >= b, nil
        case C_gt : return a > b, nil
        case C_le : return a <= b, nil
        default   : panic("unreachable")
    }
}
