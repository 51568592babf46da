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
    `sync/atomic`

    `go.uber.org/zap`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
    `github.com/PhoenixSun17/CompilerOptimization/internal/opts`
)

var (
    MethodCount  uint64
    RewriteCount uint64
    AbortCount   uint64
)

type Pass interface {
    Apply(*ir.Stream) (int, error)
}

type _PassDescriptor struct {
    pass Pass
    desc string
    stat func(*Stats) *int
}

// Stats counts the rewrites done by each pass over one method.
type Stats struct {
    Rounds     int
    Folded     int
    Propagated int
    Cleaned    int
    Retargeted int
}

// Total is the number of rewrites of all kinds.
func (self Stats) Total() int {
    return self.Folded + self.Propagated + self.Cleaned + self.Retargeted
}

// Driver runs the folding passes over a method body until nothing changes.
type Driver struct {
    Options opts.Options
}

func (self Driver) passes(fs SimpleFolder, cs *Constness, log *zap.Logger) []_PassDescriptor {
    var prop Pass

    /* pick the propagation strategy */
    if self.Options.DynamicFolding {
        prop = DynamicFolder { Constness: cs, Folder: fs, MaxRounds: self.Options.MaxRounds, Log: log }
    } else {
        prop = Propagator { Constness: cs, Folder: fs, MaxRounds: self.Options.MaxRounds, Log: log }
    }

    /* the rewrite loop body */
    return []_PassDescriptor {
        { desc: "Constant Folding"      , pass: fs        , stat: func(s *Stats) *int { return &s.Folded } },
        { desc: "Constant Propagation"  , pass: prop      , stat: func(s *Stats) *int { return &s.Propagated } },
        { desc: "Dead Constant Cleanup" , pass: Cleanup{} , stat: func(s *Stats) *int { return &s.Cleaned } },
    }
}

// Run optimizes the stream in place. args is the number of local variable
// slots taken by the method arguments. The stream must be discarded if an
// error is returned.
func (self Driver) Run(s *ir.Stream, args int) (Stats, error) {
    st, err := self.run(s, args)
    atomic.AddUint64(&MethodCount, 1)

    /* update the global counters */
    if err != nil {
        atomic.AddUint64(&AbortCount, 1)
    } else {
        atomic.AddUint64(&RewriteCount, uint64(st.Total()))
    }
    return st, err
}

func (self Driver) run(s *ir.Stream, args int) (Stats, error) {
    var n int
    var st Stats
    var err error

    /* create the folder */
    log := self.Options.Log()
    fs := SimpleFolder { Branches: self.Options.BranchFolding, Log: log }

    /* fold whatever is already constant */
    if st.Folded, err = fs.Apply(s); err != nil {
        return st, err
    }

    /* the write counts are computed once */
    cs := AnalyzeConstness(s, args)
    ps := self.passes(fs, cs, log)

    /* rewrite until nothing changes */
    for self.Options.CanIterate(st.Rounds) {
        changed := 0
        st.Rounds++

        /* apply every pass */
        for _, p := range ps {
            if n, err = p.pass.Apply(s); err != nil {
                log.Debug("pass failed", zap.String("pass", p.desc), zap.Error(err))
                return st, err
            }
            changed += n
            *p.stat(&st) += n
        }

        /* stop at the fixed point */
        if changed == 0 {
            break
        }
    }

    /* repair the loop exits */
    if st.Retargeted, err = (JumpRetargeter { Log: log }).Apply(s); err != nil {
        return st, err
    }

    /* the stream must still be well formed */
    if err = s.Verify(); err != nil {
        return st, err
    }

    /* all done */
    log.Debug("method optimized",
        zap.Int("rounds", st.Rounds),
        zap.Int("folded", st.Folded),
        zap.Int("propagated", st.Propagated),
        zap.Int("cleaned", st.Cleaned),
        zap.Int("retargeted", st.Retargeted),
    )
    return st, nil
}
