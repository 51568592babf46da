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
    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

// Cleanup removes constants that are pushed only to be popped right away.
type Cleanup struct{}

func (Cleanup) Apply(s *ir.Stream) (int, error) {
    n := 0
    p := s.First()

    /* look for `push; pop` pairs */
    for p != ir.Nil {
        q := s.Next(p)

        /* the pop must not be reachable from anywhere else */
        if q == ir.Nil || !discards(s.At(p), s.At(q)) || s.HasTargeters(q) {
            p = q
            continue
        }

        /* remove both of them */
        nx := s.Next(q)
        if err := s.DeleteRange(p, q, nx); err != nil {
            return n, err
        }

        /* continue after the pair */
        n++
        p = nx
    }

    /* all done */
    return n, nil
}

func discards(push ir.Instr, pop ir.Instr) bool {
    if push.Op != ir.OP_const || pop.Op != ir.OP_other {
        return false
    } else if push.K.Wide() {
        return pop.Code == ir.POP2
    } else {
        return pop.Code == ir.POP
    }
}
