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
    `github.com/oleiade/lane`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

// Operand is a known constant on the operand stack, along with the
// instructions that produced it. Folding the operand away removes them all.
type Operand struct {
    Val ir.Value
    Src []ir.Handle
}

// ConstStack mirrors the topmost entries of the operand stack that are known
// constants. It only ever describes the top of the real stack, so anything
// it cannot model must Reset it.
type ConstStack struct {
    s *lane.Stack
}

func newConstStack() *ConstStack {
    return &ConstStack { s: lane.NewStack() }
}

func (self *ConstStack) Size() int {
    return self.s.Size()
}

func (self *ConstStack) Push(v ir.Value, src ...ir.Handle) {
    self.s.Push(Operand { Val: v, Src: src })
}

func (self *ConstStack) Pop() Operand {
    return self.s.Pop().(Operand)
}

// PopN pops n operands, returned with the deepest one first.
func (self *ConstStack) PopN(n int) []Operand {
    ret := make([]Operand, n)
    for i := n - 1; i >= 0; i-- {
        ret[i] = self.Pop()
    }
    return ret
}

// Reset forgets everything, discarding the pending removals.
func (self *ConstStack) Reset() {
    if !self.s.Empty() {
        self.s = lane.NewStack()
    }
}
