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
    `golang.org/x/exp/maps`
    `golang.org/x/exp/slices`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

// Propagator replaces loads of variables that are assigned a single literal
// with the literal itself, folding again until nothing changes. Variables read
// at the head of a loop are never touched.
type Propagator struct {
    Constness *Constness
    Folder    SimpleFolder
    MaxRounds int
    Log       *zap.Logger
}

// Literal is a `push; store` pair assigning a constant to a variable.
type Literal struct {
    Val   ir.Value
    Push  ir.Handle
    Store ir.Handle
}

func (self Propagator) Apply(s *ir.Stream) (int, error) {
    var n int
    var err error
    var ret int

    /* iterate until a fixed point */
    for i := 1;; i++ {
        if n, err = self.Folder.Apply(s); err != nil {
            return ret, err
        }

        /* literals might have emerged from folding */
        ret += n
        lits := collectLiterals(s, self.Constness, loopCarried(s))

        /* substitute the loads */
        if n, err = rewriteLoads(s, lits, nil); err != nil {
            return ret, err
        }

        /* the stores with no loads left are dead */
        if ret += n; n == 0 || (self.MaxRounds != 0 && i >= self.MaxRounds) {
            break
        }
    }

    /* remove the dead stores */
    n, err = dropDeadStores(s, collectLiterals(s, self.Constness, loopCarried(s)))
    logger(self.Log).Debug("propagation done", zap.Int("rewrites", ret), zap.Int("dead_stores", n))
    return ret + n, err
}

// collectLiterals finds the literal assignment of every candidate slot,
// skipping the slots in excl.
func collectLiterals(s *ir.Stream, cs *Constness, excl map[int]bool) map[int]Literal {
    ret := make(map[int]Literal)

    /* look for `push; store` pairs */
    for p := s.First(); p != ir.Nil; p = s.Next(p) {
        ins := s.At(p)
        prv := s.Prev(p)

        /* must be a store to a candidate slot */
        if ins.Op != ir.OP_store || !cs.IsCandidate(ins.Slot) || excl[ins.Slot] {
            continue
        }

        /* the stored value must be a literal on every path reaching the store */
        if prv == ir.Nil || s.HasTargeters(p) {
            continue
        }

        /* of the same kind */
        if pi := s.At(prv); pi.Op == ir.OP_const && pi.K == ins.K {
            ret[ins.Slot] = Literal { Val: pi.Val, Push: prv, Store: p }
        }
    }

    /* all done */
    return ret
}

// rewriteLoads turns every load of a slot in lits into a push of its literal.
// Loads for which skip returns true are left alone.
func rewriteLoads(s *ir.Stream, lits map[int]Literal, skip func(ir.Handle) bool) (int, error) {
    n := 0
    p := s.First()

    /* substitute every matching load */
    for p != ir.Nil {
        ins := s.At(p)
        nxt := s.Next(p)

        /* the load's kind must agree with the literal */
        if lit, ok := lits[ins.Slot]; ok && ins.Op == ir.OP_load && ins.K == lit.Val.K && (skip == nil || !skip(p)) {
            if err := substitute(s, p, lit.Val); err != nil {
                return n, err
            }
            n++
        }

        /* move to the next instruction */
        p = nxt
    }

    /* all done */
    return n, nil
}

// substitute replaces the load at p with a push of v.
func substitute(s *ir.Stream, p ir.Handle, v ir.Value) error {
    return s.Delete(p, s.InsertBefore(p, ir.Const(v)))
}

// dropDeadStores removes the literal assignments whose slot is never read.
func dropDeadStores(s *ir.Stream, lits map[int]Literal) (int, error) {
    n := 0
    used := make(map[int]bool)

    /* find all the slots still being read */
    for p := s.First(); p != ir.Nil; p = s.Next(p) {
        if ins := s.At(p); ins.Op == ir.OP_load || ins.Op == ir.OP_iinc {
            used[ins.Slot] = true
        }
    }

    /* visit in a stable order */
    slots := maps.Keys(lits)
    slices.Sort(slots)

    /* remove the unused pairs */
    for _, slot := range slots {
        if lit := lits[slot]; !used[slot] {
            if err := s.DeleteRange(lit.Push, lit.Store, s.Next(lit.Store)); err != nil {
                return n, err
            }
            n++
        }
    }

    /* all done */
    return n, nil
}
