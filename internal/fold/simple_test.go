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

func build(t *testing.T, prog func(p *ir.Builder)) *ir.Stream {
    pb := ir.CreateBuilder()
    prog(pb)
    s, err := pb.Build()
    require.NoError(t, err)
    return s
}

// listing returns the instructions with branch targets shown as positions.
func listing(s *ir.Stream) []ir.Instr {
    var ret []ir.Instr
    for _, h := range s.Handles() {
        ins := s.At(h)
        for i, to := range ins.Targets() {
            ins = ins.WithTarget(i, ir.Handle(s.Pos(to)))
        }
        ret = append(ret, ins)
    }
    return ret
}

func TestSimple_Arithmetic(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(2)
        p.ICONST(3)
        p.ALU(ir.A_add, ir.K_int)
        p.STORE(ir.K_int, 1)
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    })
    n, err := SimpleFolder{}.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 1, n)
    require.NoError(t, s.Verify())
    require.Equal(t, []ir.Instr {
        ir.Const(ir.Int(5)),
        ir.Store(ir.K_int, 1),
        ir.Load(ir.K_int, 1),
        ir.Exit(ir.IRETURN),
    }, listing(s))
}

func TestSimple_Chain(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(2)
        p.ICONST(3)
        p.ALU(ir.A_mul, ir.K_int)
        p.ICONST(4)
        p.ALU(ir.A_add, ir.K_int)
        p.ALU(ir.A_neg, ir.K_int)
        p.EXIT(ir.IRETURN)
    })
    n, err := SimpleFolder{}.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 3, n)
    require.Equal(t, []ir.Instr { ir.Const(ir.Int(-10)), ir.Exit(ir.IRETURN) }, listing(s))
}

func TestSimple_ConversionsAndCompare(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(7)
        p.CONV(ir.K_int, ir.K_long)
        p.LCONST(3)
        p.ALU(ir.A_mul, ir.K_long)
        p.LCONST(30)
        p.CMP(ir.K_long, 0)
        p.EXIT(ir.IRETURN)
    })
    n, err := SimpleFolder{}.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 3, n)
    require.Equal(t, []ir.Instr { ir.Const(ir.Int(-1)), ir.Exit(ir.IRETURN) }, listing(s))
}

func TestSimple_Underflow(t *testing.T) {
    progs := []func(p *ir.Builder) {
        func(p *ir.Builder) {
            p.LOAD(ir.K_int, 0)
            p.ICONST(3)
            p.ALU(ir.A_add, ir.K_int)
            p.EXIT(ir.IRETURN)
        },
        func(p *ir.Builder) {
            p.ICONST(3)
            p.LOAD(ir.K_int, 0)
            p.ALU(ir.A_sub, ir.K_int)
            p.EXIT(ir.IRETURN)
        },
        func(p *ir.Builder) {
            p.LOAD(ir.K_float, 0)
            p.CONV(ir.K_float, ir.K_int)
            p.EXIT(ir.IRETURN)
        },
    }
    for _, prog := range progs {
        s := build(t, prog)
        before := listing(s)
        n, err := SimpleFolder{}.Apply(s)
        require.NoError(t, err)
        require.Zero(t, n)
        require.Equal(t, before, listing(s))
    }
}

func TestSimple_DivideByZero(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(1)
        p.ICONST(0)
        p.ALU(ir.A_div, ir.K_int)
        p.EXIT(ir.IRETURN)
    })
    n, err := SimpleFolder{}.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.Equal(t, 4, s.Len())
}

func TestSimple_TargetedProducer(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.LOAD(ir.K_int, 0)
        p.IF(ir.C_eq, "x")
        p.ICONST(1)
        p.OTHER(ir.POP)
        p.Label("x")
        p.ICONST(2)
        p.ICONST(3)
        p.ALU(ir.A_shl, ir.K_int)
        p.EXIT(ir.IRETURN)
    })
    n, err := SimpleFolder{}.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 1, n)
    require.NoError(t, s.Verify())
    require.Equal(t, []ir.Instr {
        ir.Load(ir.K_int, 0),
        ir.If(ir.C_eq, ir.K_int, 1, 4),
        ir.Const(ir.Int(1)),
        ir.Other(ir.POP),
        ir.Const(ir.Int(16)),
        ir.Exit(ir.IRETURN),
    }, listing(s))
}

func ifElse(cc ir.Cond, x int32, y int32) func(p *ir.Builder) {
    return func(p *ir.Builder) {
        p.ICONST(x)
        p.ICONST(y)
        p.ICMP(cc, "L2")
        p.ICONST(10)
        p.STORE(ir.K_int, 1)
        p.GOTO("M")
        p.Label("L2")
        p.ICONST(20)
        p.STORE(ir.K_int, 1)
        p.Label("M")
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    }
}

func TestBranch_Taken(t *testing.T) {
    s := build(t, ifElse(ir.C_gt, 3, 2))
    n, err := SimpleFolder { Branches: true }.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 1, n)
    require.NoError(t, s.Verify())
    require.Equal(t, []ir.Instr {
        ir.Const(ir.Int(20)),
        ir.Store(ir.K_int, 1),
        ir.Load(ir.K_int, 1),
        ir.Exit(ir.IRETURN),
    }, listing(s))
}

func TestBranch_NotTaken(t *testing.T) {
    s := build(t, ifElse(ir.C_gt, 1, 2))
    n, err := SimpleFolder { Branches: true }.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 1, n)
    require.NoError(t, s.Verify())
    require.Equal(t, []ir.Instr {
        ir.Const(ir.Int(10)),
        ir.Store(ir.K_int, 1),
        ir.Load(ir.K_int, 1),
        ir.Exit(ir.IRETURN),
    }, listing(s))
}

func TestBranch_Disabled(t *testing.T) {
    s := build(t, ifElse(ir.C_gt, 3, 2))
    n, err := SimpleFolder{}.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.Equal(t, 10, s.Len())
}

func TestBranch_WithoutElse(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.ICONST(0)
        p.IF(ir.C_ne, "skip")
        p.ICONST(5)
        p.STORE(ir.K_int, 1)
        p.Label("skip")
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    })
    n, err := SimpleFolder { Branches: true }.Apply(s)
    require.NoError(t, err)
    require.Equal(t, 1, n)
    require.Equal(t, []ir.Instr {
        ir.Const(ir.Int(5)),
        ir.Store(ir.K_int, 1),
        ir.Load(ir.K_int, 1),
        ir.Exit(ir.IRETURN),
    }, listing(s))
}

func TestBranch_SharedArm(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.LOAD(ir.K_int, 0)
        p.IF(ir.C_eq, "A")
        p.ICONST(3)
        p.ICONST(2)
        p.ICMP(ir.C_gt, "L2")
        p.Label("A")
        p.ICONST(10)
        p.STORE(ir.K_int, 1)
        p.GOTO("M")
        p.Label("L2")
        p.ICONST(20)
        p.STORE(ir.K_int, 1)
        p.Label("M")
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    })
    n, err := SimpleFolder { Branches: true }.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.Equal(t, 12, s.Len())
}

func TestBranch_Backward(t *testing.T) {
    s := build(t, func(p *ir.Builder) {
        p.Label("head")
        p.ICONST(1)
        p.IF(ir.C_ne, "head")
        p.EXIT(ir.RETURN)
    })
    n, err := SimpleFolder { Branches: true }.Apply(s)
    require.NoError(t, err)
    require.Zero(t, n)
    require.Equal(t, 3, s.Len())
}

func TestSimple_ApplyUntil(t *testing.T) {
    var stop ir.Handle
    s := build(t, func(p *ir.Builder) {
        p.ICONST(1)
        p.ICONST(2)
        p.ALU(ir.A_add, ir.K_int)
        stop = p.STORE(ir.K_int, 1)
        p.ICONST(3)
        p.ICONST(4)
        p.ALU(ir.A_add, ir.K_int)
        p.EXIT(ir.IRETURN)
    })
    n, err := SimpleFolder{}.ApplyUntil(s, stop)
    require.NoError(t, err)
    require.Equal(t, 1, n)
    require.Equal(t, 6, s.Len())
    require.Equal(t, ir.Const(ir.Int(3)), s.At(s.Prev(stop)))
}
