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

type _Region struct {
    from ir.Handle
    to   ir.Handle
}

// branch evaluates a conditional branch whose operands are all known, and
// removes the arm that can never execute. The shape it understands is the
// one an if/else statement compiles to:
//
//     (operands)
//     if<cond>  T           ; p
//     ...                   ; then-arm, runs when the branch is not taken
//     goto      M           ; J, the closing jump, optional
//   T:
//     ...                   ; else-arm, runs when the branch is taken
//   M:
//
func (self *_Folder) branch(p ir.Handle, ins ir.Instr) (ir.Handle, error) {
    var y ir.Value
    var j ir.Handle
    var m ir.Handle
    var s = self.s

    /* only int predicates over known operands */
    if !self.br || ins.K != ir.K_int || self.st.Size() < int(ins.Argc) {
        return self.abandon(p), nil
    }

    /* backward conditionals close loops */
    t := ins.Br
    if s.Pos(t) <= s.Pos(p) {
        return self.abandon(p), nil
    }

    /* find the closing jump of the then-arm */
    if q := s.Prev(t); q != p && s.At(q).Op == ir.OP_goto {
        j = q
        m = s.At(q).Br
    }

    /* a closing jump going backward is a loop, not an if/else */
    if j != ir.Nil && s.Pos(m) <= s.Pos(j) {
        return self.abandon(p), nil
    }

    /* fetch the operands */
    ops := self.st.PopN(int(ins.Argc))
    if y = ir.Int(0); ins.Argc == 2 {
        y = ops[1].Val
    }

    /* evaluate the predicate */
    taken, err := ins.Cc.Test(ops[0].Val, y)
    if err != nil {
        self.log.Debug("branch not folded", zap.Int("pos", s.Pos(p)), zap.Stringer("op", ins), zap.Error(err))
        return self.abandon(p), nil
    }

    /* pick the regions to delete */
    rs, ok := self.regions(p, t, j, m, taken)
    if !ok {
        self.log.Debug("branch arm has other entries", zap.Int("pos", s.Pos(p)), zap.Bool("taken", taken))
        return self.abandon(p), nil
    }

    /* delete them, the else-arm first so the branch still has a successor */
    next := ir.Nil
    for i := len(rs) - 1; i >= 0; i-- {
        if next = s.Next(rs[i].to); next == ir.Nil {
            return ir.Nil, ir.NewStructuralError("branch", "conditional branch at the end of the method")
        }
        if err = s.DeleteRange(rs[i].from, rs[i].to, next); err != nil {
            return ir.Nil, err
        }
    }

    /* control continues at the successor of the branch, the predicate operands are gone as well */
    for _, op := range ops {
        for _, h := range op.Src {
            if err = s.Delete(h, next); err != nil {
                return ir.Nil, err
            }
        }
    }

    /* start over with an empty stack */
    self.n++
    self.st.Reset()
    return next, nil
}

func (self *_Folder) regions(p ir.Handle, t ir.Handle, j ir.Handle, m ir.Handle, taken bool) ([]_Region, bool) {
    s := self.s

    /* taken, the then-arm and the closing jump are unreachable */
    if taken {
        rs := []_Region { { p, s.Prev(t) } }
        return rs, self.closed(rs)
    }

    /* not taken, without an else-arm only the branch goes away */
    rs := []_Region { { p, p } }
    if j == ir.Nil {
        return rs, self.closed(rs)
    }

    /* the closing jump and the else-arm are unreachable */
    if self.closed(append(rs, _Region { j, s.Prev(m) })) {
        return append(rs, _Region { j, s.Prev(m) }), true
    }

    /* the closing jump may be shared with a nested if, keep it then */
    if t != m && self.closed(append(rs, _Region { t, s.Prev(m) })) {
        return append(rs, _Region { t, s.Prev(m) }), true
    }

    /* cannot prove the arms are single-entry */
    return nil, false
}

// closed reports whether nothing outside the regions targets them.
func (self *_Folder) closed(rs []_Region) bool {
    set := make(map[ir.Handle]bool)

    /* collect all the handles */
    for _, r := range rs {
        for p := r.from;; p = self.s.Next(p) {
            if set[p] = true; p == r.to {
                break
            }
        }
    }

    /* check every incoming reference, exception table entries are always outside */
    for h := range set {
        for _, ref := range self.s.Targeters(h) {
            if !set[ref.Site] {
                return false
            }
        }
    }
    return true
}
