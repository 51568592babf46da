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
    `testing`

    `github.com/stretchr/testify/require`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

func TestConstness(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(1)
        p.STORE(ir.K_int, 1)
        p.ICONST(2)
        p.STORE(ir.K_int, 1)
        p.LCONST(3)
        p.STORE(ir.K_long, 2)
        p.IINC(4, 1)
        p.ICONST(0)
        p.STORE(ir.K_int, 0)
        p.EXIT(ir.RETURN)
    })
    cs := AnalyzeConstness(s, 1)
    require.Equal(t, 2, cs.Writes(1))
    require.Equal(t, 1, cs.Writes(2))
    require.Equal(t, 1, cs.Writes(3))
    require.Equal(t, 1, cs.Writes(4))
    require.False(t, cs.IsCandidate(0))
    require.False(t, cs.IsCandidate(1))
    require.True(t, cs.IsCandidate(2))
    require.True(t, cs.IsCandidate(4))
    require.False(t, cs.IsCandidate(5))
}

func TestPropagator_Literal(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(7)
        p.STORE(ir.K_int, 1)
        p.LOAD(ir.K_int, 1)
        p.ICONST(3)
        p.ALU(ir.A_mul, ir.K_int)
        p.EXIT(ir.IRETURN)
    })
    ps := Propagator {
        Constness : AnalyzeConstness(s, 0),
        Folder    : SimpleFolder{},
    }
    n, err := ps.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 3, n)
    require.NoError(t, s.Verify())
    require.Equal(t, []ir.Instr { ir.Const(ir.Int(21)), ir.Exit(ir.IRETURN) }, listing(s))
}

func TestPropagator_KeepsArguments(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(7)
        p.STORE(ir.K_int, 0)
        p.LOAD(ir.K_int, 0)
        p.EXIT(ir.IRETURN)
    })
    ps := Propagator {
        Constness : AnalyzeConstness(s, 1),
        Folder    : SimpleFolder{},
    }
    n, err := ps.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.Equal(t, 4, s.Len())
}

func TestPropagator_ComputedStore(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.LOAD(ir.K_int, 0)
        p.STORE(ir.K_int, 1)
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    })
    ps := Propagator {
        Constness : AnalyzeConstness(s, 1),
        Folder    : SimpleFolder{},
    }
    n, err := ps.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.Equal(t, 4, s.Len())
}

func TestPropagator_LoopHeader(t *testing.T) {
    var head ir.Handle
    s := build(t, func(p *ir.Builder) {
        p.ICONST(5)
        p.STORE(ir.K_int, 2)
        p.ICONST(0)
        p.STORE(ir.K_int, 1)
        p.Label("head")
        head = p.LOAD(ir.K_int, 2)
        p.LOAD(ir.K_int, 1)
        p.ICMP(ir.C_le, "exit")
        p.IINC(1, 1)
        p.GOTO("head")
        p.Label("exit")
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    })
    before := listing(s)
    ps := Propagator {
        Constness : AnalyzeConstness(s, 0),
        Folder    : SimpleFolder{},
    }
    n, err := ps.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.True(t, s.Live(head))
    require.Equal(t, before, listing(s))
}

func TestDynamic_Rebinding(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(1)
        p.STORE(ir.K_int, 1)
        p.LOAD(ir.K_int, 1)
        p.ICONST(2)
        p.STORE(ir.K_int, 1)
        p.LOAD(ir.K_int, 1)
        p.ALU(ir.A_add, ir.K_int)
        p.EXIT(ir.IRETURN)
    })
    df := DynamicFolder {
        Constness : AnalyzeConstness(s, 0),
        Folder    : SimpleFolder{},
    }
    n, err := df.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 4, n)
    require.NoError(t, s.Verify())
    require.Equal(t, []ir.Instr {
        ir.Const(ir.Int(1)),
        ir.Const(ir.Int(2)),
        ir.Alu(ir.A_add, ir.K_int),
        ir.Exit(ir.IRETURN),
    }, listing(s))
}

func TestDynamic_Merge(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(1)
        p.STORE(ir.K_int, 1)
        p.LOAD(ir.K_int, 0)
        p.IF(ir.C_eq, "L")
        p.ICONST(2)
        p.STORE(ir.K_int, 1)
        p.Label("L")
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    })
    before := listing(s)
    df := DynamicFolder {
        Constness : AnalyzeConstness(s, 1),
        Folder    : SimpleFolder{},
    }
    n, err := df.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.Equal(t, before, listing(s))
}

func TestDynamic_PrefixFold(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(2)
        p.ICONST(3)
        p.ALU(ir.A_mul, ir.K_int)
        p.STORE(ir.K_int, 1)
        p.LOAD(ir.K_int, 1)
        p.IINC(1, 1)
        p.LOAD(ir.K_int, 1)
        p.ALU(ir.A_add, ir.K_int)
        p.EXIT(ir.IRETURN)
    })
    df := DynamicFolder {
        Constness : AnalyzeConstness(s, 0),
        Folder    : SimpleFolder{},
        MaxRounds : 8,
    }
    n, err := df.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 3, n)
    require.Equal(t, []ir.Instr {
        ir.Const(ir.Int(6)),
        ir.Store(ir.K_int, 1),
        ir.Const(ir.Int(6)),
        ir.Iinc(1, 1),
        ir.Const(ir.Int(7)),
        ir.Alu(ir.A_add, ir.K_int),
        ir.Exit(ir.IRETURN),
    }, listing(s))
}

func TestDynamic_LoopHeader(t *testing.T) {
    var head ir.Handle
    s := build(t, func(p *ir.Builder) {
        p.ICONST(5)
        p.STORE(ir.K_int, 2)
        p.ICONST(0)
        p.STORE(ir.K_int, 1)
        p.Label("head")
        head = p.LOAD(ir.K_int, 2)
        p.LOAD(ir.K_int, 1)
        p.ICMP(ir.C_le, "exit")
        p.IINC(1, 1)
        p.GOTO("head")
        p.Label("exit")
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    })
    before := listing(s)
    df := DynamicFolder {
        Constness : AnalyzeConstness(s, 0),
        Folder    : SimpleFolder{},
    }
    n, err := df.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.True(t, s.Live(head))
    require.Equal(t, ir.Load(ir.K_int, 2), s.At(head))
    require.Equal(t, before, listing(s))
}

func TestDynamic_ExceptionGuard(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.Label("try")
        p.ICONST(1)
        p.STORE(ir.K_int, 1)
        p.ICONST(2)
        p.STORE(ir.K_int, 1)
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
        p.Label("catch")
        p.OTHER(ir.POP)
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
        p.CATCH("try", "catch", "catch", 0)
    })
    df := DynamicFolder {
        Constness : AnalyzeConstness(s, 0),
        Folder    : SimpleFolder{},
    }
    n, err := df.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 1, n)
    require.NoError(t, s.Verify())
    require.Equal(t, []ir.Instr {
        ir.Const(ir.Int(1)),
        ir.Store(ir.K_int, 1),
        ir.Const(ir.Int(2)),
        ir.Store(ir.K_int, 1),
        ir.Const(ir.Int(2)),
        ir.Exit(ir.IRETURN),
        ir.Other(ir.POP),
        ir.Load(ir.K_int, 1),
        ir.Exit(ir.IRETURN),
    }, listing(s))
}

func TestDynamic_LoopHeaderStore(t *testing.T) {
    for _, dynamic := range []bool { false, true } {
        var head, store, load ir.Handle
        s := build(t, func(p *ir.Builder) {
            p.ICONST(0)
            p.STORE(ir.K_int, 2)
            p.ICONST(0)
            p.STORE(ir.K_int, 1)
            p.Label("head")
            head = p.LOAD(ir.K_int, 1)
            p.ICONST(20)
            p.ICMP(ir.C_ge, "exit")
            p.IINC(2, 1)
            p.ICONST(20)
            store = p.STORE(ir.K_int, 1)
            load = p.LOAD(ir.K_int, 1)
            p.STORE(ir.K_int, 3)
            p.GOTO("head")
            p.Label("exit")
            p.LOAD(ir.K_int, 2)
            p.EXIT(ir.IRETURN)
        })
        before := listing(s)
        cs := AnalyzeConstness(s, 0)

        /* both strategies leave the loop variable alone */
        var ps Pass = Propagator { Constness: cs, Folder: SimpleFolder{} }
        if dynamic {
            ps = DynamicFolder { Constness: cs, Folder: SimpleFolder{} }
        }
        n, err := ps.Apply(s)
        require.NoError(t, err)
        require.Zero(t, n)
        require.Equal(t, ir.Load(ir.K_int, 1), s.At(head))
        require.Equal(t, ir.Store(ir.K_int, 1), s.At(store))
        require.Equal(t, ir.Load(ir.K_int, 1), s.At(load))
        require.Equal(t, before, listing(s))
    }
}
