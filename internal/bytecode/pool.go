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
    `fmt`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

// Constant pool tags.
const (
    T_utf8     = 1
    T_integer  = 3
    T_float    = 4
    T_long     = 5
    T_double   = 6
    T_class    = 7
    T_string   = 8
)

// Entry is one constant pool entry. Numeric entries carry their value, any
// other entry is kept as opaque bytes.
type Entry struct {
    Tag uint8
    Val ir.Value
    Raw []byte
}

type _PoolKey struct {
    k    ir.Kind
    bits uint64
}

// Pool is the constant pool of a class. Index 0 is never used, and long and
// double entries take two indices.
type Pool struct {
    ents  []Entry
    index map[_PoolKey]uint16
}

func NewPool() *Pool {
    return &Pool {
        ents  : make([]Entry, 1, 64),
        index : make(map[_PoolKey]uint16),
    }
}

// Len is the constant_pool_count of the class file.
func (self *Pool) Len() int {
    return len(self.ents)
}

func (self *Pool) Entry(i uint16) (Entry, bool) {
    if i == 0 || int(i) >= len(self.ents) || self.ents[i].Tag == 0 {
        return Entry{}, false
    } else {
        return self.ents[i], true
    }
}

// Get returns the numeric value at index i.
func (self *Pool) Get(i uint16) (ir.Value, bool) {
    if e, ok := self.Entry(i); !ok || !e.Val.K.Numeric() {
        return ir.Value{}, false
    } else {
        return e.Val, true
    }
}

func (self *Pool) Lookup(v ir.Value) (uint16, bool) {
    i, ok := self.index[_PoolKey { v.K, v.Bits() }]
    return i, ok
}

// Add interns a numeric constant, reusing an existing entry if possible.
func (self *Pool) Add(v ir.Value) uint16 {
    if i, ok := self.Lookup(v); ok {
        return i
    }

    /* convert to pool tag */
    tag := tagOf(v.K)
    if tag == 0 {
        panic(fmt.Sprintf("not a numeric constant: %s", v))
    }

    /* add the entry */
    i := self.append(Entry { Tag: tag, Val: v })
    self.index[_PoolKey { v.K, v.Bits() }] = i
    return i
}

// AddOpaque appends an entry the optimizer does not interpret.
func (self *Pool) AddOpaque(tag uint8, raw []byte) uint16 {
    return self.append(Entry { Tag: tag, Raw: raw })
}

func (self *Pool) append(e Entry) uint16 {
    i := len(self.ents)
    self.ents = append(self.ents, e)

    /* wide entries take an extra slot */
    if e.Tag == T_long || e.Tag == T_double {
        self.ents = append(self.ents, Entry{})
    }

    /* check for overflow */
    if len(self.ents) > 0xffff {
        panic("constant pool overflow")
    }
    return uint16(i)
}

func tagOf(k ir.Kind) uint8 {
    switch k {
        case ir.K_int    : return T_integer
        case ir.K_long   : return T_long
        case ir.K_float  : return T_float
        case ir.K_double : return T_double
        default          : return 0
    }
}
