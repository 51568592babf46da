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
    `fmt`
    `math`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

const (
    _MaxCodeSize = 65535
)

type _Encoder struct {
    s    *ir.Stream
    pool *Pool
    end  int
    hs   []ir.Handle
    pc   map[ir.Handle]int
    wide map[ir.Handle]bool
}

// Encode lays out the stream as the body of a Code attribute. New numeric
// constants that do not fit a compact form are interned into the pool.
func Encode(s *ir.Stream, pool *Pool) ([]byte, []Handler, error) {
    enc := &_Encoder {
        s    : s,
        pool : pool,
        hs   : s.Handles(),
        pc   : make(map[ir.Handle]int, s.Len()),
        wide : make(map[ir.Handle]bool),
    }

    /* assign the offsets */
    if err := enc.layout(); err != nil {
        return nil, nil, err
    }

    /* emit every instruction */
    buf, err := enc.encode()
    if err != nil {
        return nil, nil, err
    }

    /* rebuild the exception table */
    tab, err := enc.handlers()
    if err != nil {
        return nil, nil, err
    } else {
        return buf, tab, nil
    }
}

func (self *_Encoder) layout() error {
    for {
        pc := 0
        buf := make([]byte, 0, 16)

        /* assign offsets with the current jump forms */
        for _, h := range self.hs {
            self.pc[h] = pc
            ins, err := self.emit(buf[:0], h, pc, false)
            if err != nil {
                return err
            }
            pc += len(ins)
        }

        /* widening only grows the code, so this terminates */
        self.end = pc
        if !self.widen() {
            break
        }
    }

    /* check the method size */
    if self.end > _MaxCodeSize {
        return ir.NewStructuralError("encode", fmt.Sprintf("code size %d exceeds the limit", self.end))
    } else {
        return nil
    }
}

func (self *_Encoder) widen() bool {
    ret := false
    for _, h := range self.hs {
        if ins := self.s.At(h); ins.Op == ir.OP_goto && !self.wide[h] {
            if off := self.pc[ins.Br] - self.pc[h]; off != int(int16(off)) {
                ret = true
                self.wide[h] = true
            }
        }
    }
    return ret
}

func (self *_Encoder) encode() ([]byte, error) {
    var err error
    buf := make([]byte, 0, self.end)

    /* emit with the final offsets */
    for _, h := range self.hs {
        if buf, err = self.emit(buf, h, self.pc[h], true); err != nil {
            return nil, err
        }
    }

    /* should never happen */
    if len(buf) != self.end {
        panic("code size mismatch")
    } else {
        return buf, nil
    }
}

func (self *_Encoder) handlers() ([]Handler, error) {
    var ret []Handler
    for i, e := range self.s.Exceptions() {
        start, ok1 := self.pc[e.Start]
        handler, ok2 := self.pc[e.Handler]

        /* the end may be the end of the code */
        end, ok3 := self.pc[e.End]
        if e.End == ir.Nil {
            end, ok3 = self.end, true
        }

        /* all the fields must be resolved */
        if !ok1 || !ok2 || !ok3 {
            return nil, ir.NewStructuralError("encode", fmt.Sprintf("exception entry %d refers to a removed instruction", i))
        }

        /* the range may have become empty */
        if start < end {
            ret = append(ret, Handler {
                StartPC   : uint16(start),
                EndPC     : uint16(end),
                HandlerPC : uint16(handler),
                CatchType : e.CatchType,
            })
        }
    }
    return ret, nil
}

func (self *_Encoder) target(h ir.Handle, to ir.Handle, final bool) (int, error) {
    if pc, ok := self.pc[to]; ok || !final {
        return pc - self.pc[h], nil
    } else {
        return 0, ir.NewStructuralError("encode", fmt.Sprintf("jump to removed instruction %d", to))
    }
}

func (self *_Encoder) emit(buf []byte, h ir.Handle, pc int, final bool) ([]byte, error) {
    switch p := self.s.At(h); p.Op {
        case ir.OP_const  : return self.constant(buf, p.Val)
        case ir.OP_alu    : return self.alu(buf, p)
        case ir.OP_conv   : return self.conv(buf, p)
        case ir.OP_cmp    : return self.cmp(buf, p)
        case ir.OP_if     : return self.branch(buf, h, p, final)
        case ir.OP_goto   : return self.jump(buf, h, p, final)
        case ir.OP_switch : return self.switch_(buf, h, p, pc, final)
        case ir.OP_load   : return self.local(buf, p, ir.ILOAD, ir.ILOAD_0)
        case ir.OP_store  : return self.local(buf, p, ir.ISTORE, ir.ISTORE_0)
        case ir.OP_iinc   : return self.iinc(buf, p)
        case ir.OP_exit   : return append(buf, p.Code), nil
        default           : return append(append(buf, p.Code), p.Raw...), nil
    }
}

func (self *_Encoder) constant(buf []byte, v ir.Value) ([]byte, error) {
    switch v.K {
        case ir.K_int: {
            switch x := v.Int32(); {
                case x >= -1 && x <= 5     : return append(buf, uint8(ir.ICONST_0 + x)), nil
                case x == int32(int8(x))   : return append(buf, ir.BIPUSH, uint8(x)), nil
                case x == int32(int16(x))  : return appendU2(append(buf, ir.SIPUSH), uint16(x)), nil
            }
        }
        case ir.K_long: {
            if x := v.Int64(); x == 0 || x == 1 {
                return append(buf, ir.LCONST_0 + uint8(x)), nil
            }
        }
        case ir.K_float: {
            switch math.Float32bits(v.Float32()) {
                case 0                    : return append(buf, ir.FCONST_0), nil
                case math.Float32bits(1)  : return append(buf, ir.FCONST_1), nil
                case math.Float32bits(2)  : return append(buf, ir.FCONST_2), nil
            }
        }
        case ir.K_double: {
            switch math.Float64bits(v.Float64()) {
                case 0                    : return append(buf, ir.DCONST_0), nil
                case math.Float64bits(1)  : return append(buf, ir.DCONST_1), nil
            }
        }
        default: {
            return nil, ir.NewUnsupportedOperandError("const", v.K, "not a numeric constant")
        }
    }

    /* load from the constant pool */
    switch i := self.pool.Add(v); {
        case v.K.Wide() : return appendU2(append(buf, ir.LDC2_W), i), nil
        case i < 256    : return append(buf, ir.LDC, uint8(i)), nil
        default         : return appendU2(append(buf, ir.LDC_W), i), nil
    }
}

func (self *_Encoder) alu(buf []byte, p ir.Instr) ([]byte, error) {
    k := kindIndex(_NumKinds[:], p.K)
    if k < 0 {
        return nil, ir.NewUnsupportedOperandError(p.Alu.String(), p.K, "not a numeric kind")
    }

    /* arithmetic operations have all four kinds */
    if i := opIndex(_ArithOps[:], p.Alu); i >= 0 {
        return append(buf, ir.IADD + uint8(i * 4 + k)), nil
    }

    /* bitwise operations only have int and long */
    if i := opIndex(_BitOps[:], p.Alu); i >= 0 && k < 2 {
        return append(buf, ir.ISHL + uint8(i * 2 + k)), nil
    } else {
        return nil, ir.NewUnsupportedOperandError(p.Alu.String(), p.K, "no such instruction")
    }
}

func (self *_Encoder) conv(buf []byte, p ir.Instr) ([]byte, error) {
    for i, cv := range _Conversions {
        if cv.from == p.K && cv.to == p.To {
            return append(buf, ir.I2L + uint8(i)), nil
        }
    }
    return nil, ir.NewUnsupportedOperandError(p.String(), p.K, "no such conversion")
}

func (self *_Encoder) cmp(buf []byte, p ir.Instr) ([]byte, error) {
    switch {
        case p.K == ir.K_long                  : return append(buf, ir.LCMP), nil
        case p.K == ir.K_float  && p.Nb < 0    : return append(buf, ir.FCMPL), nil
        case p.K == ir.K_float                 : return append(buf, ir.FCMPG), nil
        case p.K == ir.K_double && p.Nb < 0    : return append(buf, ir.DCMPL), nil
        case p.K == ir.K_double                : return append(buf, ir.DCMPG), nil
        default                                : return nil, ir.NewUnsupportedOperandError("cmp", p.K, "not comparable")
    }
}

func (self *_Encoder) branch(buf []byte, h ir.Handle, p ir.Instr, final bool) ([]byte, error) {
    var op uint8
    cc := uint8(p.Cc)

    /* select the opcode */
    switch {
        case p.K == ir.K_int && p.Argc == 1                      : op = ir.IFEQ + cc
        case p.K == ir.K_int                                     : op = ir.IF_ICMPEQ + cc
        case p.K == ir.K_ref && p.Argc == 1 && p.Cc == ir.C_eq   : op = ir.IFNULL
        case p.K == ir.K_ref && p.Argc == 1 && p.Cc == ir.C_ne   : op = ir.IFNONNULL
        case p.K == ir.K_ref && p.Cc == ir.C_eq                  : op = ir.IF_ACMPEQ
        case p.K == ir.K_ref && p.Cc == ir.C_ne                  : op = ir.IF_ACMPNE
        default                                                  : return nil, ir.NewUnsupportedOperandError("if" + p.Cc.String(), p.K, "no such branch")
    }

    /* conditional branches have no wide form */
    off, err := self.target(h, p.Br, final)
    if err != nil {
        return nil, err
    } else if final && off != int(int16(off)) {
        return nil, ir.NewStructuralError("encode", fmt.Sprintf("branch offset %d out of range", off))
    } else {
        return appendU2(append(buf, op), uint16(off)), nil
    }
}

func (self *_Encoder) jump(buf []byte, h ir.Handle, p ir.Instr, final bool) ([]byte, error) {
    off, err := self.target(h, p.Br, final)
    if err != nil {
        return nil, err
    } else if self.wide[h] {
        return appendU4(append(buf, ir.GOTO_W), uint32(off)), nil
    } else {
        return appendU2(append(buf, ir.GOTO), uint16(off)), nil
    }
}

func (self *_Encoder) switch_(buf []byte, h ir.Handle, p ir.Instr, pc int, final bool) ([]byte, error) {
    offs := make([]int, len(p.Sw))
    for i, to := range p.Sw {
        off, err := self.target(h, to, final)
        if err != nil {
            return nil, err
        }
        offs[i] = off
    }

    /* opcode, padding and the default target */
    buf = append(buf, p.Code)
    buf = append(buf, make([]byte, 3 - pc % 4)...)
    buf = appendU4(buf, uint32(offs[0]))

    /* lookupswitch is a list of pairs */
    if p.Code == ir.LOOKUPSWITCH {
        buf = appendU4(buf, uint32(len(p.Keys)))
        for i, key := range p.Keys {
            buf = appendU4(appendU4(buf, uint32(key)), uint32(offs[i + 1]))
        }
        return buf, nil
    }

    /* tableswitch keys must be consecutive */
    for i := 1; i < len(p.Keys); i++ {
        if p.Keys[i] != p.Keys[i - 1] + 1 {
            return nil, ir.NewStructuralError("encode", "tableswitch keys are not consecutive")
        }
    }

    /* tableswitch needs at least one case */
    if len(p.Keys) == 0 {
        return nil, ir.NewStructuralError("encode", "empty tableswitch")
    }

    /* the jump table */
    buf = appendU4(buf, uint32(p.Keys[0]))
    buf = appendU4(buf, uint32(p.Keys[len(p.Keys) - 1]))
    for _, off := range offs[1:] {
        buf = appendU4(buf, uint32(off))
    }
    return buf, nil
}

func (self *_Encoder) local(buf []byte, p ir.Instr, base uint8, short uint8) ([]byte, error) {
    switch k := kindIndex(_SlotKinds[:], p.K); {
        case k < 0            : return nil, ir.NewUnsupportedOperandError("local", p.K, "no such local kind")
        case p.Slot < 0       : return nil, ir.NewStructuralError("encode", fmt.Sprintf("negative local slot %d", p.Slot))
        case p.Slot < 4       : return append(buf, short + uint8(k * 4 + p.Slot)), nil
        case p.Slot < 256     : return append(buf, base + uint8(k), uint8(p.Slot)), nil
        case p.Slot < 65536   : return appendU2(append(buf, ir.WIDE, base + uint8(k)), uint16(p.Slot)), nil
        default               : return nil, ir.NewStructuralError("encode", fmt.Sprintf("local slot %d out of range", p.Slot))
    }
}

func (self *_Encoder) iinc(buf []byte, p ir.Instr) ([]byte, error) {
    switch {
        case p.Slot < 256 && p.Iv == int32(int8(p.Iv))     : return append(buf, ir.IINC, uint8(p.Slot), uint8(p.Iv)), nil
        case p.Slot < 65536 && p.Iv == int32(int16(p.Iv))  : return appendU2(appendU2(append(buf, ir.WIDE, ir.IINC), uint16(p.Slot)), uint16(p.Iv)), nil
        default                                            : return nil, ir.NewStructuralError("encode", fmt.Sprintf("iinc %d, %d out of range", p.Slot, p.Iv))
    }
}

func opIndex(ops []ir.AluOp, op ir.AluOp) int {
    for i, v := range ops {
        if v == op {
            return i
        }
    }
    return -1
}

func appendU2(buf []byte, v uint16) []byte {
    return append(buf, uint8(v >> 8), uint8(v))
}

func appendU4(buf []byte, v uint32) []byte {
    return append(buf, uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v))
}
