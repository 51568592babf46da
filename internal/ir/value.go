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
    `fmt`
    `math`
    `strconv`
)

type Kind uint8

const (
    K_void Kind = iota
    K_int
    K_long
    K_float
    K_double
    K_ref
    K_byte
    K_char
    K_short
)

func (self Kind) String() string {
    switch self {
        case K_void   : return "void"
        case K_int    : return "int"
        case K_long   : return "long"
        case K_float  : return "float"
        case K_double : return "double"
        case K_ref    : return "ref"
        case K_byte   : return "byte"
        case K_char   : return "char"
        case K_short  : return "short"
        default       : return "kind(" + strconv.Itoa(int(self)) + ")"
    }
}

// Numeric reports whether values of this kind can live on the operand stack
// as a foldable constant.
func (self Kind) Numeric() bool {
    return self >= K_int && self <= K_double
}

// Wide reports whether the kind takes two local slots and two stack words.
func (self Kind) Wide() bool {
    return self == K_long || self == K_double
}

// Value is a compile-time constant. Int values are kept sign-extended in I,
// float values are kept exactly in F.
type Value struct {
    K Kind
    I int64
    F float64
}

func Int(v int32) Value {
    return Value { K: K_int, I: int64(v) }
}

func Long(v int64) Value {
    return Value { K: K_long, I: v }
}

func Float(v float32) Value {
    return Value { K: K_float, F: float64(v) }
}

func Double(v float64) Value {
    return Value { K: K_double, F: v }
}

func (self Value) Int32()   int32   { return int32(self.I) }
func (self Value) Int64()   int64   { return self.I }
func (self Value) Float32() float32 { return float32(self.F) }
func (self Value) Float64() float64 { return self.F }

// Bits returns the raw bit pattern, which is also the identity of the value.
func (self Value) Bits() uint64 {
    switch self.K {
        case K_int    : return uint64(uint32(self.I))
        case K_long   : return uint64(self.I)
        case K_float  : return uint64(math.Float32bits(float32(self.F)))
        case K_double : return math.Float64bits(self.F)
        default       : return 0
    }
}

// Equal compares two values by kind and bit pattern, so NaN equals itself and
// 0.0 differs from -0.0.
func (self Value) Equal(other Value) bool {
    return self.K == other.K && self.Bits() == other.Bits()
}

func (self Value) String() string {
    switch self.K {
        case K_int    : return strconv.FormatInt(self.I, 10)
        case K_long   : return strconv.FormatInt(self.I, 10) + "L"
        case K_float  : return strconv.FormatFloat(self.F, 'g', -1, 32) + "f"
        case K_double : return strconv.FormatFloat(self.F, 'g', -1, 64) + "d"
        default       : return fmt.Sprintf("<%s>", self.K)
    }
}

// Convert applies a primitive widening or narrowing conversion.
func (self Value) Convert(to Kind) (Value, error) {
    switch self.K {
        case K_int: {
            switch to {
                case K_int    : return self, nil
                case K_long   : return Long(self.I), nil
                case K_float  : return Float(float32(int32(self.I))), nil
                case K_double : return Double(float64(int32(self.I))), nil
                case K_byte   : return Int(int32(int8(self.I))), nil
                case K_char   : return Int(int32(uint16(self.I))), nil
                case K_short  : return Int(int32(int16(self.I))), nil
            }
        }
        case K_long: {
            switch to {
                case K_int    : return Int(int32(self.I)), nil
                case K_long   : return self, nil
                case K_float  : return Float(float32(self.I)), nil
                case K_double : return Double(float64(self.I)), nil
            }
        }
        case K_float, K_double: {
            switch to {
                case K_int    : return Int(f2i(self.F)), nil
                case K_long   : return Long(f2l(self.F)), nil
                case K_float  : return Float(float32(self.F)), nil
                case K_double : return Double(self.F), nil
            }
        }
    }
    return Value{}, errOperand("convert", self.K, "cannot convert to " + to.String())
}

func f2i(v float64) int32 {
    switch {
        case math.IsNaN(v)         : return 0
        case v >= math.MaxInt32    : return math.MaxInt32
        case v <= math.MinInt32    : return math.MinInt32
        default                    : return int32(math.Trunc(v))
    }
}

func f2l(v float64) int64 {
    switch {
        case math.IsNaN(v)         : return 0
        case v >= math.MaxInt64    : return math.MaxInt64
        case v <= math.MinInt64    : return math.MinInt64
        default                    : return int64(math.Trunc(v))
    }
}
