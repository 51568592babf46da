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

// DynamicFolder extends Propagator to variables assigned more than once. The
// value of such a variable is tracked along straight-line runs of code only,
// and variables read at the head of a loop are never touched.
type DynamicFolder struct {
    Constness *Constness
    Folder    SimpleFolder
    MaxRounds int
    Log       *zap.Logger
}

// _Binding is the last literal assigned to a variable in the current run.
// Push and Store are set while the assignment has not been observed by
// anything, so it can be removed if overwritten.
type _Binding struct {
    val   ir.Value
    push  ir.Handle
    store ir.Handle
}

type _Dynamic struct {
    s       *ir.Stream
    log     *zap.Logger
    lits    map[int]Literal
    vars    map[int]*_Binding
    carried map[int]bool
    stuck   map[ir.Handle]bool
    folder  SimpleFolder
    n       int
}

func (self DynamicFolder) Apply(s *ir.Stream) (int, error) {
    ds := &_Dynamic {
        s      : s,
        log    : logger(self.Log),
        stuck  : make(map[ir.Handle]bool),
        folder : self.Folder,
    }

    /* scan until no store could be resolved by folding its prefix */
    for i := 1;; i++ {
        again, err := ds.scan(self.Constness)
        if err != nil {
            return ds.n, err
        }

        /* the number of restarts is bounded */
        if !again {
            break
        }
        if self.MaxRounds != 0 && i >= self.MaxRounds {
            ds.log.Debug("dynamic folding restart limit reached", zap.Int("restarts", i))
            break
        }
    }

    /* single-assignment literals with no loads left are dead */
    n, err := dropDeadStores(s, collectLiterals(s, self.Constness, ds.carried))
    ds.log.Debug("dynamic folding done", zap.Int("rewrites", ds.n), zap.Int("dead_stores", n))
    return ds.n + n, err
}

// loopCarried finds the variables loaded by the first instruction of a loop,
// that is, the target of a backward branch.
func loopCarried(s *ir.Stream) map[int]bool {
    ret := make(map[int]bool)

    /* check every backward branch */
    for p := s.First(); p != ir.Nil; p = s.Next(p) {
        if ins := s.At(p); ins.IsBranch() {
            for _, to := range ins.Targets() {
                if hd := s.At(to); hd.Op == ir.OP_load && s.Pos(to) <= s.Pos(p) {
                    ret[hd.Slot] = true
                }
            }
        }
    }

    /* all done */
    return ret
}

func (self *_Dynamic) scan(cs *Constness) (bool, error) {
    var err error
    var again bool

    /* the stream might have changed since the last scan */
    self.vars = make(map[int]*_Binding)
    self.carried = loopCarried(self.s)
    self.lits = collectLiterals(self.s, cs, self.carried)

    /* walk through the stream */
    for p := self.s.First(); p != ir.Nil; {
        if self.s.HasTargeters(p) {
            self.merge()
        }

        /* evaluate the instruction */
        ins := self.s.At(p)
        nxt := self.s.Next(p)

        /* variable accesses and control flow */
        switch ins.Op {
            case ir.OP_load  : nxt, err = self.load(p, ins)
            case ir.OP_store : again, err = self.store(p, ins, cs)
            case ir.OP_iinc  : self.iinc(ins)
            case ir.OP_if    : self.commit()
            case ir.OP_exit  : err = self.exit(p)
        }

        /* stop on errors or restarts */
        if err != nil || again {
            return again, err
        }

        /* the run ends where control cannot fall through */
        if !ins.Falls() {
            self.merge()
        }

        /* move to the next instruction */
        p = nxt
    }

    /* no restarts required */
    return false, nil
}

func (self *_Dynamic) load(p ir.Handle, ins ir.Instr) (ir.Handle, error) {
    var ok bool
    var val ir.Value

    /* loop variables are left alone */
    if self.carried[ins.Slot] {
        self.observe(ins.Slot)
        return self.s.Next(p), nil
    }

    /* single assignment literals hold everywhere */
    if lit, found := self.lits[ins.Slot]; found {
        val, ok = lit.Val, true
    } else if b := self.vars[ins.Slot]; b != nil {
        val, ok = b.val, true
    }

    /* unknown value, or loaded with another kind */
    if !ok || val.K != ins.K {
        self.observe(ins.Slot)
        return self.s.Next(p), nil
    }

    /* substitute the load */
    nh := self.s.InsertBefore(p, ir.Const(val))
    if err := self.s.Delete(p, nh); err != nil {
        return ir.Nil, err
    }

    /* continue after the new push */
    self.n++
    return self.s.Next(nh), nil
}

func (self *_Dynamic) store(p ir.Handle, ins ir.Instr, cs *Constness) (bool, error) {
    slot := ins.Slot
    prev := self.s.Prev(p)

    /* a wide store clobbers the next slot as well */
    if ins.K.Wide() {
        if err := self.kill(slot + 1, p); err != nil {
            return false, err
        }
    }

    /* so does any store into the upper half of a wide variable */
    if b := self.vars[slot - 1]; b != nil && b.val.K.Wide() {
        if err := self.kill(slot - 1, p); err != nil {
            return false, err
        }
    }

    /* the previous value is overwritten */
    if err := self.kill(slot, p); err != nil {
        return false, err
    }

    /* single assignments and loop variables are handled elsewhere */
    if self.carried[slot] || cs.IsCandidate(slot) {
        return false, nil
    }

    /* a literal stored on every path reaching the store */
    if prev != ir.Nil && !self.s.HasTargeters(p) {
        if pi := self.s.At(prev); pi.Op == ir.OP_const && pi.K == ins.K {
            self.vars[slot] = &_Binding { val: pi.Val, push: prev, store: p }
            return false, nil
        }
    }

    /* the value is computed, maybe folding the prefix resolves it */
    if prev == ir.Nil || self.stuck[p] || !foldable(self.s.At(prev)) {
        return false, nil
    }

    /* fold everything up to this store */
    n, err := self.folder.ApplyUntil(self.s, p)
    if err != nil {
        return false, err
    }

    /* nothing changed, don't try again */
    if n == 0 {
        self.stuck[p] = true
        return false, nil
    }

    /* something changed, start over */
    self.n += n
    return true, nil
}

func foldable(ins ir.Instr) bool {
    return ins.Op == ir.OP_alu || ins.Op == ir.OP_conv || ins.Op == ir.OP_cmp
}

func (self *_Dynamic) iinc(ins ir.Instr) {
    b := self.vars[ins.Slot]

    /* increment the known value, the store is observed by the increment */
    if b != nil && b.val.K == ir.K_int {
        b.val = ir.Int(b.val.Int32() + ins.Iv)
        b.push = ir.Nil
        b.store = ir.Nil
    } else {
        delete(self.vars, ins.Slot)
    }
}

// kill forgets the value of a slot being overwritten at p. Its pending
// assignment was never observed, so it is removed.
func (self *_Dynamic) kill(slot int, p ir.Handle) error {
    if b := self.vars[slot]; b != nil {
        delete(self.vars, slot)
        return self.drop(b, p)
    } else {
        return nil
    }
}

func (self *_Dynamic) drop(b *_Binding, end ir.Handle) error {
    if b.push == ir.Nil || self.guarded(b.store, end) {
        return nil
    }

    /* remove the `push; store` pair */
    slot := self.s.At(b.store).Slot
    if err := self.s.DeleteRange(b.push, b.store, self.s.Next(b.store)); err != nil {
        return err
    }

    /* one more rewrite */
    self.n++
    self.log.Debug("dead store removed", zap.Int("slot", slot), zap.Stringer("value", b.val))
    return nil
}

// guarded reports whether an exception raised between the two instructions
// may be caught by a handler in this method, which could read the variable.
func (self *_Dynamic) guarded(from ir.Handle, to ir.Handle) bool {
    if len(self.s.Exceptions()) == 0 {
        return false
    }

    /* check every instruction in between */
    for p := from; p != ir.Nil; p = self.s.Next(p) {
        if self.s.Protected(p) {
            return true
        }
        if p == to {
            break
        }
    }
    return false
}

func (self *_Dynamic) observe(slot int) {
    if b := self.vars[slot]; b != nil {
        b.push = ir.Nil
        b.store = ir.Nil
    }
}

// commit marks every pending assignment as observed, since control might
// leave the current run here.
func (self *_Dynamic) commit() {
    for _, b := range self.vars {
        b.push = ir.Nil
        b.store = ir.Nil
    }
}

// merge drops all the bindings, which only hold within a straight-line run.
func (self *_Dynamic) merge() {
    self.commit()
    self.vars = make(map[int]*_Binding)
}

// exit removes the pending assignments, the variables die with the method.
func (self *_Dynamic) exit(p ir.Handle) error {
    slots := maps.Keys(self.vars)
    slices.Sort(slots)

    /* drop them in a stable order */
    for _, slot := range slots {
        if err := self.drop(self.vars[slot], p); err != nil {
            return err
        }
    }

    /* nothing is known after the exit */
    self.vars = make(map[int]*_Binding)
    return nil
}
