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
    `sort`
    `strconv`
    `strings`
)

const (
    _LB_jump_pc = "_jump_pc_"
)

// Builder assembles a Stream with symbolic labels. A label binds to the next
// instruction added after it.
type Builder struct {
    s     *Stream
    refs  map[string]Handle
    pends map[string][]Ref
    marks []string
}

func CreateBuilder() *Builder {
    return &Builder {
        s     : NewStream(),
        refs  : make(map[string]Handle, 64),
        pends : make(map[string][]Ref, 64),
    }
}

// PC returns the label name Mark uses for a bytecode offset.
func PC(pc int) string {
    return _LB_jump_pc + strconv.Itoa(pc)
}

func (self *Builder) add(ins Instr) Handle {
    h := self.s.Append(ins)

    /* bind all the waiting labels */
    for _, lb := range self.marks {
        self.bind(lb, h)
    }

    /* all labels are bound */
    self.marks = self.marks[:0]
    return h
}

func (self *Builder) bind(to string, h Handle) {
    for _, ref := range self.pends[to] {
        self.s.retarget(ref, h)
    }
    self.refs[to] = h
    delete(self.pends, to)
}

func (self *Builder) ref(to string, ref Ref) {
    if to == "" {
        return
    } else if h, ok := self.refs[to]; ok {
        self.s.retarget(ref, h)
    } else {
        self.pends[to] = append(self.pends[to], ref)
    }
}

func (self *Builder) jmp(ins Instr, to ...string) Handle {
    h := self.add(ins)
    for i, lb := range to {
        self.ref(lb, Ref { Site: h, Index: i })
    }
    return h
}

// Mark labels the next instruction with its bytecode offset.
func (self *Builder) Mark(pc int) {
    self.Label(PC(pc))
}

// Label names the next instruction.
func (self *Builder) Label(to string) {
    if _, ok := self.refs[to]; ok {
        panic("label " + to + " has already been linked")
    }
    for _, lb := range self.marks {
        if lb == to {
            panic("label " + to + " has already been linked")
        }
    }
    self.marks = append(self.marks, to)
}

// Build resolves the stream. Every referenced label must have been bound to an
// instruction.
func (self *Builder) Build() (*Stream, error) {
    var keys []string

    /* check for unresolved labels */
    for key := range self.pends {
        keys = append(keys, strings.TrimPrefix(key, _LB_jump_pc))
    }

    /* report them in a stable order */
    if len(keys) != 0 {
        sort.Strings(keys)
        return nil, errStructural("build", -1, "unresolved jump target(s): " + strings.Join(keys, ", "))
    }

    /* the Builder's life-time ends here */
    s := self.s
    self.s = nil
    return s, nil
}

func (self *Builder) Add(ins Instr) Handle {
    return self.add(ins)
}

func (self *Builder) CONST(v Value) Handle {
    return self.add(Const(v))
}

func (self *Builder) ICONST(v int32) Handle {
    return self.add(Const(Int(v)))
}

func (self *Builder) LCONST(v int64) Handle {
    return self.add(Const(Long(v)))
}

func (self *Builder) FCONST(v float32) Handle {
    return self.add(Const(Float(v)))
}

func (self *Builder) DCONST(v float64) Handle {
    return self.add(Const(Double(v)))
}

func (self *Builder) ALU(op AluOp, k Kind) Handle {
    return self.add(Alu(op, k))
}

func (self *Builder) CONV(from Kind, to Kind) Handle {
    return self.add(Conv(from, to))
}

func (self *Builder) CMP(k Kind, bias int8) Handle {
    return self.add(Cmp(k, bias))
}

// IF adds a branch comparing the top operand against zero.
func (self *Builder) IF(cc Cond, to string) Handle {
    return self.jmp(If(cc, K_int, 1, Nil), to)
}

// ICMP adds a branch comparing the top two int operands.
func (self *Builder) ICMP(cc Cond, to string) Handle {
    return self.jmp(If(cc, K_int, 2, Nil), to)
}

// BR adds a conditional branch of any shape.
func (self *Builder) BR(cc Cond, k Kind, argc uint8, to string) Handle {
    return self.jmp(If(cc, k, argc, Nil), to)
}

func (self *Builder) GOTO(to string) Handle {
    return self.jmp(Goto(Nil), to)
}

// SWITCH adds a tableswitch or lookupswitch, to[0] being the default label.
func (self *Builder) SWITCH(code uint8, keys []int32, to ...string) Handle {
    return self.jmp(Switch(code, keys, make([]Handle, len(to))), to...)
}

func (self *Builder) LOAD(k Kind, slot int) Handle {
    return self.add(Load(k, slot))
}

func (self *Builder) STORE(k Kind, slot int) Handle {
    return self.add(Store(k, slot))
}

func (self *Builder) IINC(slot int, delta int32) Handle {
    return self.add(Iinc(slot, delta))
}

func (self *Builder) EXIT(code uint8) Handle {
    return self.add(Exit(code))
}

func (self *Builder) OTHER(code uint8, raw ...byte) Handle {
    return self.add(Other(code, raw...))
}

// CATCH adds an exception table entry. An empty end label means the range
// extends to the end of the method.
func (self *Builder) CATCH(start string, end string, handler string, catchType uint16) int {
    i := self.s.AddException(Nil, Nil, Nil, catchType)
    self.ref(start, Ref { Index: i * 3 + X_start })
    self.ref(end, Ref { Index: i * 3 + X_end })
    self.ref(handler, Ref { Index: i * 3 + X_handler })
    return i
}
