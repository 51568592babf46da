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

package fold

import (
    `go.uber.org/zap`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

// SimpleFolder evaluates straight-line chains of constant pushes feeding
// arithmetic, conversions, comparisons and, when Branches is set, conditional
// branches.
type SimpleFolder struct {
    Branches bool
    Log      *zap.Logger
}

type _Folder struct {
    s   *ir.Stream
    st  *ConstStack
    br  bool
    n   int
    log *zap.Logger
}

func (self SimpleFolder) Apply(s *ir.Stream) (int, error) {
    return self.ApplyUntil(s, ir.Nil)
}

// ApplyUntil folds the prefix of the stream that ends right before stop. A
// Nil stop folds the whole stream.
func (self SimpleFolder) ApplyUntil(s *ir.Stream, stop ir.Handle) (int, error) {
    var err error
    var fs = self.folder(s)

    /* scan the stream */
    for p := s.First(); p != ir.Nil && p != stop; {
        if stop != ir.Nil && !s.Live(stop) {
            break
        }

        /* jump targets are control flow merges, nothing is known there */
        if s.HasTargeters(p) {
            fs.st.Reset()
        }

        /* fold one instruction */
        if p, err = fs.step(p); err != nil {
            return fs.n, err
        }
    }

    /* all done */
    return fs.n, nil
}

func (self SimpleFolder) folder(s *ir.Stream) *_Folder {
    return &_Folder {
        s   : s,
        st  : newConstStack(),
        br  : self.Branches,
        log : logger(self.Log),
    }
}

func (self *_Folder) step(p ir.Handle) (ir.Handle, error) {
    switch ins := self.s.At(p); ins.Op {
        case ir.OP_const : return self.push(p, ins), nil
        case ir.OP_alu   : return self.alu(p, ins)
        case ir.OP_conv  : return self.conv(p, ins)
        case ir.OP_cmp   : return self.cmp(p, ins)
        case ir.OP_if    : return self.branch(p, ins)
        default          : return self.abandon(p), nil
    }
}

func (self *_Folder) push(p ir.Handle, ins ir.Instr) ir.Handle {
    q := self.s.Next(p)

    /* only track pushes that feed something foldable */
    if q != ir.Nil && chains(self.s.At(q)) {
        self.st.Push(ins.Val, p)
    } else {
        self.st.Reset()
    }

    /* move to the next instruction */
    return q
}

func chains(ins ir.Instr) bool {
    switch ins.Op {
        case ir.OP_const : return true
        case ir.OP_alu   : return true
        case ir.OP_conv  : return true
        case ir.OP_cmp   : return true
        case ir.OP_if    : return true
        default          : return false
    }
}

func (self *_Folder) alu(p ir.Handle, ins ir.Instr) (ir.Handle, error) {
    var y ir.Value
    var n = ins.Alu.Arity()

    /* not enough known operands */
    if self.st.Size() < n {
        return self.abandon(p), nil
    }

    /* right operand is on the top */
    ops := self.st.PopN(n)
    if n == 2 {
        y = ops[1].Val
    }

    /* evaluate the operation, division by zero must trap at run time */
    v, err := ir.Eval(ins.Alu, ins.K, ops[0].Val, y)
    if err != nil {
        self.log.Debug("arithmetic not folded", zap.Int("pos", self.s.Pos(p)), zap.Stringer("op", ins), zap.Error(err))
        return self.abandon(p), nil
    }

    /* replace with the result */
    return self.fold(p, v, ops)
}

func (self *_Folder) conv(p ir.Handle, ins ir.Instr) (ir.Handle, error) {
    if self.st.Size() < 1 {
        return self.abandon(p), nil
    }

    /* apply the conversion to the value on the top */
    ops := self.st.PopN(1)
    v, err := ops[0].Val.Convert(ins.To)

    /* conversions are always defined for matching kinds */
    if err != nil || ops[0].Val.K != ins.K {
        self.log.Debug("conversion not folded", zap.Int("pos", self.s.Pos(p)), zap.Stringer("op", ins), zap.Error(err))
        return self.abandon(p), nil
    }

    /* replace with the converted value */
    return self.fold(p, v, ops)
}

func (self *_Folder) cmp(p ir.Handle, ins ir.Instr) (ir.Handle, error) {
    if self.st.Size() < 2 {
        return self.abandon(p), nil
    }

    /* compare the two values on the top */
    ops := self.st.PopN(2)
    v, err := ir.Compare(ins.K, ins.Nb, ops[0].Val, ops[1].Val)

    /* the operand kinds must match */
    if err != nil {
        self.log.Debug("comparison not folded", zap.Int("pos", self.s.Pos(p)), zap.Stringer("op", ins), zap.Error(err))
        return self.abandon(p), nil
    }

    /* replace with the comparison result */
    return self.fold(p, v, ops)
}

// fold replaces p and the producers of ops with a single push of v, which
// inherits everything that targeted them.
func (self *_Folder) fold(p ir.Handle, v ir.Value, ops []Operand) (ir.Handle, error) {
    nh := self.s.InsertBefore(p, ir.Const(v))

    /* remove the producers */
    for _, op := range ops {
        for _, h := range op.Src {
            if err := self.s.Delete(h, nh); err != nil {
                return ir.Nil, err
            }
        }
    }

    /* remove the instruction itself */
    if err := self.s.Delete(p, nh); err != nil {
        return ir.Nil, err
    }

    /* the result may feed the next instruction */
    self.n++
    self.st.Push(v, nh)
    return self.s.Next(nh), nil
}

func (self *_Folder) abandon(p ir.Handle) ir.Handle {
    self.st.Reset()
    return self.s.Next(p)
}

func logger(log *zap.Logger) *zap.Logger {
    if log == nil {
        return zap.NewNop()
    } else {
        return log
    }
}
