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
    `strings`
)

type OpCode uint8

const (
    OP_other OpCode = iota
    OP_const
    OP_alu
    OP_conv
    OP_cmp
    OP_if
    OP_goto
    OP_switch
    OP_load
    OP_store
    OP_iinc
    OP_exit
)

// Instr is an immutable instruction. Retargeting an instruction produces a new
// value with WithTarget.
type Instr struct {
    Op   OpCode
    K    Kind
    To   Kind
    Alu  AluOp
    Cc   Cond
    Argc uint8
    Nb   int8
    Code uint8
    Slot int
    Iv   int32
    Val  Value
    Br   Handle
    Sw   []Handle
    Keys []int32
    Raw  []byte
}

// Const pushes a numeric constant.
func Const(v Value) Instr {
    return Instr { Op: OP_const, K: v.K, Val: v }
}

func Alu(op AluOp, k Kind) Instr {
    return Instr { Op: OP_alu, K: k, Alu: op }
}

func Conv(from Kind, to Kind) Instr {
    return Instr { Op: OP_conv, K: from, To: to }
}

// Cmp compares two values of kind k and pushes -1, 0 or 1. bias is the result
// for unordered floating point operands.
func Cmp(k Kind, bias int8) Instr {
    return Instr { Op: OP_cmp, K: k, Nb: bias }
}

// If branches to br when the predicate holds. argc is 1 for the forms that
// compare a single operand with zero (or null), and 2 otherwise.
func If(cc Cond, k Kind, argc uint8, br Handle) Instr {
    return Instr { Op: OP_if, K: k, Cc: cc, Argc: argc, Br: br }
}

func Goto(br Handle) Instr {
    return Instr { Op: OP_goto, Br: br }
}

// Switch is a tableswitch or lookupswitch. sw[0] is the default target and
// sw[i + 1] is the target of keys[i].
func Switch(code uint8, keys []int32, sw []Handle) Instr {
    return Instr { Op: OP_switch, K: K_int, Code: code, Keys: keys, Sw: sw }
}

func Load(k Kind, slot int) Instr {
    return Instr { Op: OP_load, K: k, Slot: slot }
}

func Store(k Kind, slot int) Instr {
    return Instr { Op: OP_store, K: k, Slot: slot }
}

func Iinc(slot int, delta int32) Instr {
    return Instr { Op: OP_iinc, K: K_int, Slot: slot, Iv: delta }
}

// Exit is a return or athrow instruction.
func Exit(code uint8) Instr {
    return Instr { Op: OP_exit, Code: code }
}

// Other is any instruction the passes do not model, kept with its raw operand
// bytes.
func Other(code uint8, raw ...byte) Instr {
    return Instr { Op: OP_other, Code: code, Raw: raw }
}

// IsBranch reports whether the instruction carries jump targets.
func (self Instr) IsBranch() bool {
    return self.Op == OP_if || self.Op == OP_goto || self.Op == OP_switch
}

// Falls reports whether control may continue to the next instruction.
func (self Instr) Falls() bool {
    return self.Op != OP_goto && self.Op != OP_switch && self.Op != OP_exit
}

// Targets lists the jump targets, indexed the same way as WithTarget.
func (self Instr) Targets() []Handle {
    switch self.Op {
        case OP_if, OP_goto : return []Handle { self.Br }
        case OP_switch      : return self.Sw
        default             : return nil
    }
}

// WithTarget returns a copy of the instruction with target i replaced.
func (self Instr) WithTarget(i int, to Handle) Instr {
    switch self.Op {
        case OP_if, OP_goto: {
            if i != 0 {
                panic(fmt.Sprintf("target index out of range: %d", i))
            }
            self.Br = to
            return self
        }
        case OP_switch: {
            sw := make([]Handle, len(self.Sw))
            copy(sw, self.Sw)
            sw[i] = to
            self.Sw = sw
            return self
        }
        default: {
            panic("instruction is not a branch")
        }
    }
}

func (self Instr) String() string {
    switch self.Op {
        case OP_const  : return fmt.Sprintf("const   %s", self.Val)
        case OP_alu    : return fmt.Sprintf("%-7s %s", self.Alu, self.K)
        case OP_conv   : return fmt.Sprintf("conv    %s -> %s", self.K, self.To)
        case OP_cmp    : return fmt.Sprintf("cmp     %s, nan=%d", self.K, self.Nb)
        case OP_if     : return fmt.Sprintf("if%-5s %s/%d, @%d", self.Cc, self.K, self.Argc, self.Br)
        case OP_goto   : return fmt.Sprintf("goto    @%d", self.Br)
        case OP_switch : return fmt.Sprintf("%s %s", OpName(self.Code), self.formatCases())
        case OP_load   : return fmt.Sprintf("load    %s #%d", self.K, self.Slot)
        case OP_store  : return fmt.Sprintf("store   %s #%d", self.K, self.Slot)
        case OP_iinc   : return fmt.Sprintf("iinc    #%d, %d", self.Slot, self.Iv)
        case OP_exit   : return OpName(self.Code)
        default        : return self.formatOther()
    }
}

func (self Instr) formatCases() string {
    buf := make([]string, 0, len(self.Sw))
    buf = append(buf, fmt.Sprintf("default: @%d", self.Sw[0]))

    /* add all the cases */
    for i, key := range self.Keys {
        buf = append(buf, fmt.Sprintf("%d: @%d", key, self.Sw[i + 1]))
    }

    /* join them together */
    return "{" + strings.Join(buf, ", ") + "}"
}

func (self Instr) formatOther() string {
    if len(self.Raw) == 0 {
        return OpName(self.Code)
    } else {
        return fmt.Sprintf("%-7s % x", OpName(self.Code), self.Raw)
    }
}
