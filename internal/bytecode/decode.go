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

package bytecode

import (
    `encoding/binary`
    `fmt`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

type _Decoder struct {
    pc   int
    buf  []byte
    pool *Pool
    pb   *ir.Builder
}

// Decode converts the body of a Code attribute into an instruction stream.
// Methods using jsr or ret are rejected.
func Decode(code []byte, pool *Pool, handlers []Handler) (*ir.Stream, error) {
    dec := &_Decoder {
        buf  : code,
        pool : pool,
        pb   : ir.CreateBuilder(),
    }

    /* decode every instruction */
    for dec.pc < len(code) {
        if err := dec.decode(); err != nil {
            return nil, err
        }
    }

    /* add the exception table */
    for _, h := range handlers {
        end := ""
        if int(h.EndPC) != len(code) {
            end = ir.PC(int(h.EndPC))
        }
        dec.pb.CATCH(ir.PC(int(h.StartPC)), end, ir.PC(int(h.HandlerPC)), h.CatchType)
    }

    /* resolve all the labels */
    return dec.pb.Build()
}

func (self *_Decoder) eof(n int) error {
    if self.pc + n > len(self.buf) {
        return ir.NewStructuralError("decode", fmt.Sprintf("truncated instruction at pc %d", self.pc))
    } else {
        return nil
    }
}

func (self *_Decoder) u1(i int) int   { return int(self.buf[self.pc + i]) }
func (self *_Decoder) s1(i int) int32 { return int32(int8(self.buf[self.pc + i])) }
func (self *_Decoder) u2(i int) int   { return int(binary.BigEndian.Uint16(self.buf[self.pc + i:])) }
func (self *_Decoder) s2(i int) int32 { return int32(int16(binary.BigEndian.Uint16(self.buf[self.pc + i:]))) }
func (self *_Decoder) s4(i int) int32 { return int32(binary.BigEndian.Uint32(self.buf[self.pc + i:])) }

func (self *_Decoder) rel(off int32) string {
    return ir.PC(self.pc + int(off))
}

func (self *_Decoder) decode() error {
    op := self.buf[self.pc]
    self.pb.Mark(self.pc)

    /* variable sized instructions */
    switch op {
        case ir.WIDE         : return self.wide()
        case ir.TABLESWITCH  : return self.tableswitch()
        case ir.LOOKUPSWITCH : return self.lookupswitch()
        case ir.JSR, ir.JSR_W, ir.RET: {
            return ir.NewUnsupportedOperandError(ir.OpName(op), ir.K_ref, "subroutines are not supported")
        }
    }

    /* check for operands */
    n := int(_OperandSize[op])
    if _OperandSize[op] < 0 || ir.OpName(op) == "<invalid>" {
        return ir.NewStructuralError("decode", fmt.Sprintf("invalid opcode 0x%02x at pc %d", op, self.pc))
    } else if err := self.eof(n + 1); err != nil {
        return err
    }

    /* fixed sized instructions */
    self.fixed(op)
    self.pc += n + 1
    return nil
}

func (self *_Decoder) fixed(op uint8) {
    switch {
        case op >= ir.ICONST_M1 && op <= ir.ICONST_5   : self.pb.ICONST(int32(op) - ir.ICONST_0)
        case op >= ir.LCONST_0 && op <= ir.LCONST_1    : self.pb.LCONST(int64(op - ir.LCONST_0))
        case op >= ir.FCONST_0 && op <= ir.FCONST_2    : self.pb.FCONST(float32(op - ir.FCONST_0))
        case op >= ir.DCONST_0 && op <= ir.DCONST_1    : self.pb.DCONST(float64(op - ir.DCONST_0))
        case op == ir.BIPUSH                           : self.pb.ICONST(self.s1(1))
        case op == ir.SIPUSH                           : self.pb.ICONST(self.s2(1))
        case op == ir.LDC                              : self.ldc(op, uint16(self.u1(1)))
        case op == ir.LDC_W || op == ir.LDC2_W         : self.ldc(op, uint16(self.u2(1)))
        case op >= ir.ILOAD && op <= ir.ALOAD          : self.pb.LOAD(_SlotKinds[op - ir.ILOAD], self.u1(1))
        case op >= ir.ILOAD_0 && op <= ir.ALOAD_3      : self.pb.LOAD(_SlotKinds[(op - ir.ILOAD_0) / 4], int(op - ir.ILOAD_0) % 4)
        case op >= ir.ISTORE && op <= ir.ASTORE        : self.pb.STORE(_SlotKinds[op - ir.ISTORE], self.u1(1))
        case op >= ir.ISTORE_0 && op <= ir.ASTORE_3    : self.pb.STORE(_SlotKinds[(op - ir.ISTORE_0) / 4], int(op - ir.ISTORE_0) % 4)
        case op >= ir.IADD && op <= ir.DNEG            : self.pb.ALU(_ArithOps[(op - ir.IADD) / 4], _NumKinds[(op - ir.IADD) % 4])
        case op >= ir.ISHL && op <= ir.LXOR            : self.pb.ALU(_BitOps[(op - ir.ISHL) / 2], _NumKinds[(op - ir.ISHL) % 2])
        case op == ir.IINC                             : self.pb.IINC(self.u1(1), self.s1(2))
        case op >= ir.I2L && op <= ir.I2S              : self.conv(op)
        case op == ir.LCMP                             : self.pb.CMP(ir.K_long, 0)
        case op == ir.FCMPL                            : self.pb.CMP(ir.K_float, -1)
        case op == ir.FCMPG                            : self.pb.CMP(ir.K_float, 1)
        case op == ir.DCMPL                            : self.pb.CMP(ir.K_double, -1)
        case op == ir.DCMPG                            : self.pb.CMP(ir.K_double, 1)
        case op >= ir.IFEQ && op <= ir.IFLE            : self.pb.IF(ir.Cond(op - ir.IFEQ), self.rel(self.s2(1)))
        case op >= ir.IF_ICMPEQ && op <= ir.IF_ICMPLE  : self.pb.ICMP(ir.Cond(op - ir.IF_ICMPEQ), self.rel(self.s2(1)))
        case op == ir.IF_ACMPEQ                        : self.pb.BR(ir.C_eq, ir.K_ref, 2, self.rel(self.s2(1)))
        case op == ir.IF_ACMPNE                        : self.pb.BR(ir.C_ne, ir.K_ref, 2, self.rel(self.s2(1)))
        case op == ir.IFNULL                           : self.pb.BR(ir.C_eq, ir.K_ref, 1, self.rel(self.s2(1)))
        case op == ir.IFNONNULL                        : self.pb.BR(ir.C_ne, ir.K_ref, 1, self.rel(self.s2(1)))
        case op == ir.GOTO                             : self.pb.GOTO(self.rel(self.s2(1)))
        case op == ir.GOTO_W                           : self.pb.GOTO(self.rel(self.s4(1)))
        case op >= ir.IRETURN && op <= ir.RETURN       : self.pb.EXIT(op)
        case op == ir.ATHROW                           : self.pb.EXIT(op)
        default                                        : self.other(op)
    }
}

func (self *_Decoder) other(op uint8) {
    n := int(_OperandSize[op])
    raw := make([]byte, n)
    copy(raw, self.buf[self.pc + 1:])
    self.pb.OTHER(op, raw...)
}

func (self *_Decoder) conv(op uint8) {
    cv := _Conversions[op - ir.I2L]
    self.pb.CONV(cv.from, cv.to)
}

// ldc keeps the non-numeric constants, such as strings and classes, opaque.
func (self *_Decoder) ldc(op uint8, i uint16) {
    if v, ok := self.pool.Get(i); ok {
        self.pb.CONST(v)
    } else {
        self.other(op)
    }
}

func (self *_Decoder) wide() error {
    if err := self.eof(4); err != nil {
        return err
    }

    /* the widened opcode */
    op := self.buf[self.pc + 1]
    idx := self.u2(2)

    /* iinc has a wide constant as well */
    switch {
        case op == ir.IINC: {
            if err := self.eof(6); err != nil {
                return err
            }
            self.pb.IINC(idx, self.s2(4))
            self.pc += 6
            return nil
        }
        case op >= ir.ILOAD && op <= ir.ALOAD: {
            self.pb.LOAD(_SlotKinds[op - ir.ILOAD], idx)
        }
        case op >= ir.ISTORE && op <= ir.ASTORE: {
            self.pb.STORE(_SlotKinds[op - ir.ISTORE], idx)
        }
        case op == ir.RET: {
            return ir.NewUnsupportedOperandError("ret", ir.K_ref, "subroutines are not supported")
        }
        default: {
            return ir.NewStructuralError("decode", fmt.Sprintf("invalid wide opcode 0x%02x at pc %d", op, self.pc))
        }
    }

    /* load or store */
    self.pc += 4
    return nil
}

// pad is the offset of the first operand of a switch, which is aligned to 4
// bytes from the start of the method.
func (self *_Decoder) pad() int {
    return 4 - self.pc % 4
}

func (self *_Decoder) tableswitch() error {
    p := self.pad()
    if err := self.eof(p + 12); err != nil {
        return err
    }

    /* the range of keys */
    low := self.s4(p + 4)
    high := self.s4(p + 8)
    if high < low {
        return ir.NewStructuralError("decode", fmt.Sprintf("invalid tableswitch range at pc %d", self.pc))
    }

    /* check for the jump table */
    n := int(high) - int(low) + 1
    if err := self.eof(p + 12 + n * 4); err != nil {
        return err
    }

    /* the default target comes first */
    keys := make([]int32, 0, n)
    labels := []string { self.rel(self.s4(p)) }

    /* add all the cases */
    for i := 0; i < n; i++ {
        keys = append(keys, low + int32(i))
        labels = append(labels, self.rel(self.s4(p + 12 + i * 4)))
    }

    /* add the instruction */
    self.pb.SWITCH(ir.TABLESWITCH, keys, labels...)
    self.pc += p + 12 + n * 4
    return nil
}

func (self *_Decoder) lookupswitch() error {
    p := self.pad()
    if err := self.eof(p + 8); err != nil {
        return err
    }

    /* check for the pairs */
    n := int(self.s4(p + 4))
    if n < 0 {
        return ir.NewStructuralError("decode", fmt.Sprintf("invalid lookupswitch size at pc %d", self.pc))
    } else if err := self.eof(p + 8 + n * 8); err != nil {
        return err
    }

    /* the default target comes first */
    keys := make([]int32, 0, n)
    labels := []string { self.rel(self.s4(p)) }

    /* add all the pairs */
    for i := 0; i < n; i++ {
        keys = append(keys, self.s4(p + 8 + i * 8))
        labels = append(labels, self.rel(self.s4(p + 12 + i * 8)))
    }

    /* add the instruction */
    self.pb.SWITCH(ir.LOOKUPSWITCH, keys, labels...)
    self.pc += p + 8 + n * 8
    return nil
}
