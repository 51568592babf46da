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

// Constness counts the writes to every local variable slot.
type Constness struct {
    args   int
    writes map[int]int
}

// AnalyzeConstness scans the stream once. The first args slots hold the
// method arguments and are written by the caller.
func AnalyzeConstness(s *ir.Stream, args int) *Constness {
    ret := &Constness {
        args   : args,
        writes : make(map[int]int),
    }

    /* count the stores and increments */
    for p := s.First(); p != ir.Nil; p = s.Next(p) {
        switch ins := s.At(p); ins.Op {
            case ir.OP_iinc: {
                ret.writes[ins.Slot]++
            }
            case ir.OP_store: {
                if ret.writes[ins.Slot]++; ins.K.Wide() {
                    ret.writes[ins.Slot + 1]++
                }
            }
        }
    }

    /* all done */
    return ret
}

func (self *Constness) Writes(slot int) int {
    return self.writes[slot]
}

// IsCandidate reports whether the slot is written exactly once in the method
// body, so any literal stored there holds for every read.
func (self *Constness) IsCandidate(slot int) bool {
    return slot >= self.args && self.writes[slot] == 1
}
