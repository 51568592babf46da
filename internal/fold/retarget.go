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
    `go.uber.org/zap`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

// JumpRetargeter repairs loop conditions whose exit target was moved in front
// of the loop by a deletion, pointing them at the instruction following the
// loop instead. Branches that were written that way are left alone.
type JumpRetargeter struct {
    Log *zap.Logger
}

func (self JumpRetargeter) Apply(s *ir.Stream) (int, error) {
    n := 0
    q := lane.NewQueue()

    /* collect all the back edges */
    for p := s.First(); p != ir.Nil; p = s.Next(p) {
        if ins := s.At(p); ins.Op == ir.OP_goto && s.Pos(ins.Br) < s.Pos(p) {
            q.Enqueue(p)
        }
    }

    /* check the condition of every loop */
    for !q.Empty() {
        g := q.Dequeue().(ir.Handle)
        c := loopCondition(s, g)

        /* no condition, or the condition is still good */
        if c == ir.Nil {
            continue
        }

        /* the loop must be followed by something */
        ci := s.At(c)
        nx := s.Next(g)

        /* the exit must be after the back edge */
        if nx == ir.Nil {
            return n, ir.NewStructuralError("retarget", "loop without a successor")
        }

        /* substitute the branch with one exiting the loop */
        n++
        s.Replace(c, ir.If(ci.Cc, ci.K, ci.Argc, nx))
        logger(self.Log).Debug("loop exit retargeted", zap.Int("branch", s.Pos(c)), zap.Int("target", s.Pos(nx)))
    }

    /* all done */
    return n, nil
}

// loopCondition walks backward from the back edge g to the loop header, and
// returns the first conditional branch of the loop itself if its target has
// gone stale, that is, a deletion moved it before the loop header.
func loopCondition(s *ir.Stream, g ir.Handle) ir.Handle {
    h := s.At(g).Br
    hp := s.Pos(h)
    st := lane.NewStack()

    /* walk backward, skipping the nested loops */
    for p := s.Prev(g); p != ir.Nil && s.Pos(p) >= hp; p = s.Prev(p) {
        ins := s.At(p)
        pos := s.Pos(p)

        /* leaving a nested loop through its header */
        for !st.Empty() && st.Head().(ir.Handle) == p {
            st.Pop()
        }

        /* entering a nested loop through its back edge */
        if (ins.Op == ir.OP_goto || ins.Op == ir.OP_if) && s.Pos(ins.Br) >= hp && s.Pos(ins.Br) <= pos {
            if s.Pos(ins.Br) < pos {
                st.Push(ins.Br)
            }
            continue
        }

        /* the first conditional of the loop itself */
        if ins.Op == ir.OP_if && st.Empty() {
            if s.Pos(ins.Br) < hp && s.Moved(p) {
                return p
            } else {
                return ir.Nil
            }
        }
    }

    /* no loop condition */
    return ir.Nil
}
