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

package emu

import (
    `testing`

    `github.com/stretchr/testify/require`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

func runEmulator(t *testing.T, locals int, prog func(p *ir.Builder), args ...ir.Value) (ir.Value, error) {
    pb := ir.CreateBuilder()
    prog(pb)
    s, err := pb.Build()
    require.NoError(t, err)
    return LoadStream(s, locals).Run(args...)
}

func TestEmu_Loop(t *testing.T) {
    v, err := runEmulator(t, 3, func(p *ir.Builder) {
        p.ICONST(0)
        p.STORE(ir.K_int, 1)
        p.ICONST(0)
        p.STORE(ir.K_int, 2)
        p.Label("head")
        p.LOAD(ir.K_int, 2)
        p.LOAD(ir.K_int, 0)
        p.ICMP(ir.C_ge, "exit")
        p.LOAD(ir.K_int, 1)
        p.LOAD(ir.K_int, 2)
        p.ALU(ir.A_add, ir.K_int)
        p.STORE(ir.K_int, 1)
        p.IINC(2, 1)
        p.GOTO("head")
        p.Label("exit")
        p.LOAD(ir.K_int, 1)
        p.EXIT(ir.IRETURN)
    }, ir.Int(10))
    require.NoError(t, err)
    require.Equal(t, ir.Int(45), v)
}

func TestEmu_Switch(t *testing.T) {
    prog := func(p *ir.Builder) {
        p.LOAD(ir.K_int, 0)
        p.SWITCH(ir.LOOKUPSWITCH, []int32 { 1, 5 }, "d", "one", "five")
        p.Label("one")
        p.LCONST(100)
        p.EXIT(ir.LRETURN)
        p.Label("five")
        p.LCONST(500)
        p.EXIT(ir.LRETURN)
        p.Label("d")
        p.LCONST(-1)
        p.EXIT(ir.LRETURN)
    }
    for k, r := range map[int32]int64 { 1: 100, 5: 500, 7: -1 } {
        v, err := runEmulator(t, 1, prog, ir.Int(k))
        require.NoError(t, err)
        require.Equal(t, ir.Long(r), v)
    }
}

func TestEmu_Trap(t *testing.T) {
    div := func(p *ir.Builder) {
        p.ICONST(1)
        p.LOAD(ir.K_int, 0)
        p.ALU(ir.A_div, ir.K_int)
        p.EXIT(ir.IRETURN)
    }
    _, err := runEmulator(t, 1, div, ir.Int(0))
    require.Equal(t, Trap { Class: "java/lang/ArithmeticException" }, err)
    v, err := runEmulator(t, 1, func(p *ir.Builder) {
        p.Label("try")
        div(p)
        p.Label("catch")
        p.OTHER(ir.POP)
        p.ICONST(-1)
        p.EXIT(ir.IRETURN)
        p.CATCH("try", "catch", "catch", 0)
    }, ir.Int(0))
    require.NoError(t, err)
    require.Equal(t, ir.Int(-1), v)
}

func TestEmu_StepLimit(t *testing.T) {
    pb := ir.CreateBuilder()
    pb.Label("spin")
    pb.GOTO("spin")
    s, err := pb.Build()
    require.NoError(t, err)
    e := LoadStream(s, 0)
    e.Limit = 100
    _, err = e.Run()
    require.Error(t, err)
}
