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

package emu

import (
    `fmt`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

const (
    _DefaultStepLimit = 1000000
)

// Trap is a Java exception raised by the emulated code and not caught in the
// method.
type Trap struct {
    Class string
}

func (self Trap) Error() string {
    return "uncaught exception: " + self.Class
}

// Emulator interprets a method body, modelling locals and the operand stack
// with one Value per entry regardless of their width.
type Emulator struct {
    PC    ir.Handle
    Ln    ir.Handle
    Rv    ir.Value
    Lv    []ir.Value
    Sp    []ir.Value
    Steps int
    Limit int
    s     *ir.Stream
    done  bool
}

// LoadStream creates an emulator with the given number of local slots.
func LoadStream(s *ir.Stream, locals int) *Emulator {
    return &Emulator {
        s     : s,
        Lv    : make([]ir.Value, locals),
        Limit : _DefaultStepLimit,
    }
}

var dispatchTab = [...]func(e *Emulator, p ir.Instr) error {
    ir.OP_other  : (*Emulator).emu_OP_other,
    ir.OP_const  : (*Emulator).emu_OP_const,
    ir.OP_alu    : (*Emulator).emu_OP_alu,
    ir.OP_conv   : (*Emulator).emu_OP_conv,
    ir.OP_cmp    : (*Emulator).emu_OP_cmp,
    ir.OP_if     : (*Emulator).emu_OP_if,
    ir.OP_goto   : (*Emulator).emu_OP_goto,
    ir.OP_switch : (*Emulator).emu_OP_switch,
    ir.OP_load   : (*Emulator).emu_OP_load,
    ir.OP_store  : (*Emulator).emu_OP_store,
    ir.OP_iinc   : (*Emulator).emu_OP_iinc,
    ir.OP_exit   : (*Emulator).emu_OP_exit,
}

// Run executes the method with the arguments placed into the first local
// slots, wide arguments taking two slots.
func (self *Emulator) Run(args ...ir.Value) (ir.Value, error) {
    i := 0
    self.PC = self.s.First()

    /* place the arguments */
    for _, v := range args {
        if self.Lv[i] = v; v.K.Wide() {
            i++
        }
        i++
    }

    /* run until the method exits */
    for !self.done {
        if self.PC == ir.Nil {
            return ir.Value{}, fmt.Errorf("emu: fell off the end of the method")
        }

        /* guard against infinite loops */
        if self.Steps++; self.Limit != 0 && self.Steps > self.Limit {
            return ir.Value{}, fmt.Errorf("emu: step limit exceeded")
        }

        /* dispatch the instruction */
        ins := self.s.At(self.PC)
        self.Ln = self.s.Next(self.PC)

        /* exceptions may be caught by this method */
        if err := dispatchTab[ins.Op](self, ins); err != nil {
            if err = self.raise(err); err != nil {
                return ir.Value{}, err
            }
        } else {
            self.PC = self.Ln
        }
    }

    /* all done */
    return self.Rv, nil
}

func (self *Emulator) raise(err error) error {
    if _, ok := err.(Trap); !ok {
        return err
    }

    /* find the handler, catch types are not resolved so every handler matches */
    for _, e := range self.s.Exceptions() {
        if self.covers(e, self.PC) {
            self.PC = e.Handler
            self.Sp = append(self.Sp[:0], ir.Value { K: ir.K_ref })
            return nil
        }
    }

    /* not caught */
    return err
}

func (self *Emulator) covers(e ir.ExceptionRange, p ir.Handle) bool {
    pos := self.s.Pos(p)
    return self.s.Pos(e.Start) <= pos && (e.End == ir.Nil || pos < self.s.Pos(e.End))
}

func (self *Emulator) push(v ir.Value) {
    self.Sp = append(self.Sp, v)
}

func (self *Emulator) pop() (ir.Value, error) {
    if n := len(self.Sp); n == 0 {
        return ir.Value{}, fmt.Errorf("emu: operand stack underflow")
    } else {
        v := self.Sp[n - 1]
        self.Sp = self.Sp[:n - 1]
        return v, nil
    }
}

func (self *Emulator) pop2() (ir.Value, ir.Value, error) {
    if y, err := self.pop(); err != nil {
        return ir.Value{}, ir.Value{}, err
    } else if x, err := self.pop(); err != nil {
        return ir.Value{}, ir.Value{}, err
    } else {
        return x, y, nil
    }
}

func (self *Emulator) emu_OP_const(p ir.Instr) error {
    self.push(p.Val)
    return nil
}

func (self *Emulator) emu_OP_alu(p ir.Instr) error {
    var err error
    var x, y ir.Value

    /* fetch the operands */
    if p.Alu.Arity() == 1 {
        x, err = self.pop()
    } else {
        x, y, err = self.pop2()
    }

    /* check for errors */
    if err != nil {
        return err
    }

    /* evaluate the operation */
    v, err := ir.Eval(p.Alu, p.K, x, y)
    if err == ir.ErrDivideByZero {
        return Trap { Class: "java/lang/ArithmeticException" }
    } else if err != nil {
        return err
    }

    /* push the result */
    self.push(v)
    return nil
}

func (self *Emulator) emu_OP_conv(p ir.Instr) error {
    x, err := self.pop()
    if err != nil {
        return err
    }

    /* apply the conversion */
    v, err := x.Convert(p.To)
    if err != nil {
        return err
    }

    /* push the result */
    self.push(v)
    return nil
}

func (self *Emulator) emu_OP_cmp(p ir.Instr) error {
    x, y, err := self.pop2()
    if err != nil {
        return err
    }

    /* compare the values */
    v, err := ir.Compare(p.K, p.Nb, x, y)
    if err != nil {
        return err
    }

    /* push the result */
    self.push(v)
    return nil
}

func (self *Emulator) emu_OP_if(p ir.Instr) error {
    var err error
    var x, y ir.Value

    /* fetch the operands */
    if p.Argc == 1 {
        x, err = self.pop()
        y = ir.Int(0)
    } else {
        x, y, err = self.pop2()
    }

    /* check for errors */
    if err != nil {
        return err
    }

    /* evaluate the predicate */
    ok, err := p.Cc.Test(x, y)
    if err != nil {
        return err
    }

    /* take the branch */
    if ok {
        self.Ln = p.Br
    }
    return nil
}

func (self *Emulator) emu_OP_goto(p ir.Instr) error {
    self.Ln = p.Br
    return nil
}

func (self *Emulator) emu_OP_switch(p ir.Instr) error {
    x, err := self.pop()
    if err != nil {
        return err
    }

    /* find the matching case */
    for i, key := range p.Keys {
        if key == x.Int32() {
            self.Ln = p.Sw[i + 1]
            return nil
        }
    }

    /* the default case */
    self.Ln = p.Sw[0]
    return nil
}

func (self *Emulator) emu_OP_load(p ir.Instr) error {
    if v := self.Lv[p.Slot]; v.K != p.K {
        return fmt.Errorf("emu: loading %s from slot %d holding %s", p.K, p.Slot, v.K)
    } else {
        self.push(v)
        return nil
    }
}

func (self *Emulator) emu_OP_store(p ir.Instr) error {
    if v, err := self.pop(); err != nil {
        return err
    } else if v.K != p.K {
        return fmt.Errorf("emu: storing %s into a %s slot", v.K, p.K)
    } else {
        self.Lv[p.Slot] = v
        return nil
    }
}

func (self *Emulator) emu_OP_iinc(p ir.Instr) error {
    if v := self.Lv[p.Slot]; v.K != ir.K_int {
        return fmt.Errorf("emu: iinc on slot %d holding %s", p.Slot, v.K)
    } else {
        self.Lv[p.Slot] = ir.Int(v.Int32() + p.Iv)
        return nil
    }
}

func (self *Emulator) emu_OP_exit(p ir.Instr) error {
    switch p.Code {
        case ir.RETURN: {
            self.done = true
            return nil
        }
        case ir.ATHROW: {
            return Trap { Class: "java/lang/Throwable" }
        }
    }

    /* returns a value */
    v, err := self.pop()
    if err != nil {
        return err
    }

    /* all done */
    self.Rv = v
    self.done = true
    return nil
}

func (self *Emulator) emu_OP_other(p ir.Instr) error {
    switch p.Code {
        case ir.NOP: {
            return nil
        }
        case ir.POP: {
            _, err := self.pop()
            return err
        }
        case ir.POP2: {
            if v, err := self.pop(); err != nil || v.K.Wide() {
                return err
            } else {
                _, err = self.pop()
                return err
            }
        }
        case ir.DUP: {
            if v, err := self.pop(); err != nil {
                return err
            } else {
                self.push(v)
                self.push(v)
                return nil
            }
        }
        case ir.SWAP: {
            if x, y, err := self.pop2(); err != nil {
                return err
            } else {
                self.push(y)
                self.push(x)
                return nil
            }
        }
        default: {
            return fmt.Errorf("emu: unsupported instruction: %s", ir.OpName(p.Code))
        }
    }
}
