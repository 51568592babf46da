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

package bytecode

import (
    `testing`

    `github.com/davecgh/go-spew/spew`
    `github.com/stretchr/testify/require`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

func roundTrip(t *testing.T, code []byte, pool *Pool, tab []Handler) *ir.Stream {
    s, err := Decode(code, pool, tab)
    require.NoError(t, err)
    require.NoError(t, s.Verify())
    buf, ntab, err := Encode(s, pool)
    require.NoError(t, err)
    require.Equal(t, code, buf, s.Disassemble())
    require.Equal(t, tab, ntab)
    return s
}

func TestPool_Intern(t *testing.T) {
    p := NewPool()
    i := p.Add(ir.Int(100000))
    j := p.Add(ir.Long(1 << 40))
    k := p.Add(ir.Float(1.5))
    require.Equal(t, uint16(1), i)
    require.Equal(t, uint16(2), j)
    require.Equal(t, uint16(4), k)
    require.Equal(t, 5, p.Len())
    require.Equal(t, i, p.Add(ir.Int(100000)))
    v, ok := p.Get(j)
    require.True(t, ok)
    require.Equal(t, ir.Long(1 << 40), v)
    _, ok = p.Get(3)
    require.False(t, ok)
    s := p.AddOpaque(T_string, []byte { 0, 1 })
    _, ok = p.Get(s)
    require.False(t, ok)
    require.Panics(t, func() { p.Add(ir.Value { K: ir.K_ref }) })
}

func TestCodec_Loop(t *testing.T) {
    code := []byte {
        0x03,                   // 0: iconst_0
        0x3c,                   // 1: istore_1
        0x1b,                   // 2: iload_1
        0x10, 0x0a,             // 3: bipush 10
        0xa2, 0x00, 0x0f,       // 5: if_icmpge 20
        0x1b,                   // 8: iload_1
        0x11, 0x01, 0x2c,       // 9: sipush 300
        0x60,                   // 12: iadd
        0x3c,                   // 13: istore_1
        0x84, 0x01, 0x01,       // 14: iinc 1, 1
        0xa7, 0xff, 0xf1,       // 17: goto 2
        0x1b,                   // 20: iload_1
        0xac,                   // 21: ireturn
    }
    s := roundTrip(t, code, NewPool(), nil)
    hs := s.Handles()
    require.Equal(t, 13, len(hs))
    require.Equal(t, ir.If(ir.C_ge, ir.K_int, 2, hs[11]), s.At(hs[4]))
    require.Equal(t, ir.Const(ir.Int(300)), s.At(hs[6]))
    require.Equal(t, ir.Alu(ir.A_add, ir.K_int), s.At(hs[7]))
    require.Equal(t, ir.Iinc(1, 1), s.At(hs[9]))
    require.Equal(t, hs[2], s.At(hs[10]).Br)
}

func TestCodec_PoolConstants(t *testing.T) {
    pool := NewPool()
    i := pool.Add(ir.Int(100000))
    j := pool.AddOpaque(T_string, []byte { 0, 1 })
    k := pool.Add(ir.Double(2.5))
    code := []byte {
        0x12, uint8(i),         // ldc #1
        0x12, uint8(j),         // ldc #2
        0x14, 0x00, uint8(k),   // ldc2_w #3
        0x58,                   // pop2
        0x57,                   // pop
        0x57,                   // pop
        0xb1,                   // return
    }
    s := roundTrip(t, code, pool, nil)
    hs := s.Handles()
    require.Equal(t, ir.Const(ir.Int(100000)), s.At(hs[0]))
    require.Equal(t, ir.Other(ir.LDC, uint8(j)), s.At(hs[1]))
    require.Equal(t, ir.Const(ir.Double(2.5)), s.At(hs[2]))
}

func TestCodec_TableSwitch(t *testing.T) {
    code := []byte {
        0x1a,                   // 0: iload_0
        0xaa, 0x00, 0x00,       // 1: tableswitch
        0x00, 0x00, 0x00, 0x1b, // default: 28
        0x00, 0x00, 0x00, 0x00, // low: 0
        0x00, 0x00, 0x00, 0x01, // high: 1
        0x00, 0x00, 0x00, 0x17, // 0: 24
        0x00, 0x00, 0x00, 0x19, // 1: 26
        0x04, 0xac,             // 24: iconst_1; ireturn
        0x05, 0xac,             // 26: iconst_2; ireturn
        0x02, 0xac,             // 28: iconst_m1; ireturn
    }
    s := roundTrip(t, code, NewPool(), nil)
    hs := s.Handles()
    sw := s.At(hs[1])
    require.Equal(t, []int32 { 0, 1 }, sw.Keys)
    require.Equal(t, []ir.Handle { hs[6], hs[2], hs[4] }, sw.Sw)
}

func TestCodec_Exceptions(t *testing.T) {
    code := []byte {
        0x04,                   // 0: iconst_1
        0x1a,                   // 1: iload_0
        0x6c,                   // 2: idiv
        0xac,                   // 3: ireturn
        0x57,                   // 4: pop
        0x02,                   // 5: iconst_m1
        0xac,                   // 6: ireturn
    }
    tab := []Handler {
        { StartPC: 0, EndPC: 4, HandlerPC: 4, CatchType: 9 },
        { StartPC: 4, EndPC: 7, HandlerPC: 4, CatchType: 0 },
    }
    s := roundTrip(t, code, NewPool(), tab)
    hs := s.Handles()
    require.Equal(t, ir.ExceptionRange { Start: hs[0], End: hs[4], Handler: hs[4], CatchType: 9 }, s.Exceptions()[0])
    require.Equal(t, ir.Nil, s.Exceptions()[1].End)
    require.True(t, s.Protected(hs[2]))
}

func TestCodec_Subroutines(t *testing.T) {
    _, err := Decode([]byte { 0xa8, 0x00, 0x03, 0xb1 }, NewPool(), nil)
    require.IsType(t, ir.UnsupportedOperandError{}, err)
    _, err = Decode([]byte { 0xc4, 0xa9, 0x00, 0x01 }, NewPool(), nil)
    require.IsType(t, ir.UnsupportedOperandError{}, err)
}

func TestCodec_Malformed(t *testing.T) {
    _, err := Decode([]byte { 0x10 }, NewPool(), nil)
    require.IsType(t, ir.StructuralError{}, err)
    _, err = Decode([]byte { 0xa7, 0x00, 0x10 }, NewPool(), nil)
    require.IsType(t, ir.StructuralError{}, err)
    _, err = Decode([]byte { 0xfe }, NewPool(), nil)
    require.IsType(t, ir.StructuralError{}, err)

    /* a key range spanning all of int32 needs a table far beyond the code */
    _, err = Decode([]byte {
        0xaa, 0x00, 0x00, 0x00,
        0x00, 0x00, 0x00, 0x00,
        0x80, 0x00, 0x00, 0x00,
        0x7f, 0xff, 0xff, 0xff,
        0xb1,
    }, NewPool(), nil)
    require.IsType(t, ir.StructuralError{}, err)
}

func TestEncode_CompactForms(t *testing.T) {
    pool := NewPool()
    p := ir.CreateBuilder()
    p.ICONST(-1)
    p.ICONST(127)
    p.ICONST(-32768)
    p.ICONST(70000)
    p.LCONST(1)
    p.FCONST(2)
    p.DCONST(0)
    p.LOAD(ir.K_double, 3)
    p.STORE(ir.K_ref, 300)
    p.IINC(5, 1000)
    p.EXIT(ir.RETURN)
    s, err := p.Build()
    require.NoError(t, err)
    buf, _, err := Encode(s, pool)
    require.NoError(t, err)
    spew.Dump(buf)
    require.Equal(t, []byte {
        0x02,
        0x10, 0x7f,
        0x11, 0x80, 0x00,
        0x12, 0x01,
        0x0a,
        0x0d,
        0x0e,
        0x29,
        0xc4, 0x3a, 0x01, 0x2c,
        0xc4, 0x84, 0x00, 0x05, 0x03, 0xe8,
        0xb1,
    }, buf)
    require.Equal(t, 2, pool.Len())
}

func TestEncode_WideGoto(t *testing.T) {
    p := ir.CreateBuilder()
    p.GOTO("far")
    for i := 0; i < 40000; i++ {
        p.OTHER(ir.NOP)
    }
    p.Label("far")
    p.EXIT(ir.RETURN)
    s, err := p.Build()
    require.NoError(t, err)
    buf, _, err := Encode(s, NewPool())
    require.NoError(t, err)
    require.Equal(t, []byte { ir.GOTO_W, 0x00, 0x00, 0x9c, 0x45 }, buf[:5])
    require.Equal(t, 40006, len(buf))
}

func TestEncode_FarBranch(t *testing.T) {
    p := ir.CreateBuilder()
    p.ICONST(0)
    p.IF(ir.C_eq, "far")
    for i := 0; i < 40000; i++ {
        p.OTHER(ir.NOP)
    }
    p.Label("far")
    p.EXIT(ir.RETURN)
    s, err := p.Build()
    require.NoError(t, err)
    _, _, err = Encode(s, NewPool())
    require.IsType(t, ir.StructuralError{}, err)
}

func TestArgSlots(t *testing.T) {
    tests := []struct {
        desc   string
        static bool
        slots  int
    } {
        { "()V", true, 0 },
        { "()V", false, 1 },
        { "(IJ)I", true, 3 },
        { "(Ljava/lang/String;D[[JZ)V", false, 6 },
        { "([Ljava/lang/Object;F)V", true, 2 },
    }
    for _, tc := range tests {
        n, err := ArgSlots(tc.desc, tc.static)
        require.NoError(t, err, tc.desc)
        require.Equal(t, tc.slots, n, tc.desc)
    }
    for _, desc := range []string { "V", "(I", "(Ljava/lang/String", "(Q)V" } {
        _, err := ArgSlots(desc, true)
        require.Error(t, err, desc)
    }
}
