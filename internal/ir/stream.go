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

package ir

import (
    `fmt`
    `strings`

    `golang.org/x/exp/slices`
)

// Handle is a stable reference to an instruction in a Stream. It survives
// edits to the rest of the stream and is never reused.
type Handle int32

// Nil is the null handle.
const Nil Handle = 0

// Exception table fields referenced by a Ref with a Nil site.
const (
    X_start = iota
    X_end
    X_handler
)

// Ref is one incoming reference to an instruction. Site is the branch that
// jumps to it, or Nil for an exception table entry, in which case Index is
// `entry * 3 + field`.
type Ref struct {
    Site  Handle
    Index int
}

func (self Ref) entry() (int, int) {
    return self.Index / 3, self.Index % 3
}

// ExceptionRange covers [Start, End), End being Nil when the range extends to
// the end of the method.
type ExceptionRange struct {
    Start     Handle
    End       Handle
    Handler   Handle
    CatchType uint16
}

type _Node struct {
    ins  Instr
    prev Handle
    next Handle
    pos  int
    live bool
}

// Stream is a doubly linked instruction sequence stored in an arena, with an
// explicit index from every instruction to the references targeting it.
type Stream struct {
    nodes []_Node
    head  Handle
    tail  Handle
    size  int
    dirty bool
    refs  map[Handle]map[Ref]struct{}
    moved map[Handle]bool
    excs  []ExceptionRange
}

func NewStream() *Stream {
    return &Stream {
        nodes : make([]_Node, 1, 64),
        refs  : make(map[Handle]map[Ref]struct{}),
        moved : make(map[Handle]bool),
    }
}

func (self *Stream) Len() int {
    return self.size
}

func (self *Stream) First() Handle {
    return self.head
}

func (self *Stream) Last() Handle {
    return self.tail
}

// Live reports whether h refers to an instruction that is still in the stream.
func (self *Stream) Live(h Handle) bool {
    return h > 0 && int(h) < len(self.nodes) && self.nodes[h].live
}

func (self *Stream) At(h Handle) Instr {
    return self.node(h).ins
}

func (self *Stream) Next(h Handle) Handle {
    return self.node(h).next
}

func (self *Stream) Prev(h Handle) Handle {
    return self.node(h).prev
}

// Handles lists the live instructions in stream order.
func (self *Stream) Handles() []Handle {
    ret := make([]Handle, 0, self.size)
    for p := self.head; p != Nil; p = self.nodes[p].next {
        ret = append(ret, p)
    }
    return ret
}

func (self *Stream) node(h Handle) *_Node {
    if !self.Live(h) {
        panic(fmt.Sprintf("invalid instruction handle: %d", h))
    } else {
        return &self.nodes[h]
    }
}

/** Construction **/

// Append adds an instruction at the end of the stream. Nil targets are
// allowed and must be resolved with SetTarget before the stream is used.
func (self *Stream) Append(ins Instr) Handle {
    h := self.alloc(ins)
    self.nodes[h].prev = self.tail

    /* link to the tail */
    if self.tail == Nil {
        self.head = h
    } else {
        self.nodes[self.tail].next = h
    }

    /* update the tail */
    self.tail = h
    return h
}

// InsertBefore adds an instruction right in front of `at`. References to `at`
// are not affected.
func (self *Stream) InsertBefore(at Handle, ins Instr) Handle {
    p := self.node(at).prev
    h := self.alloc(ins)

    /* link the new node */
    self.nodes[h].prev = p
    self.nodes[h].next = at
    self.nodes[at].prev = h

    /* it might be the new head */
    if p == Nil {
        self.head = h
    } else {
        self.nodes[p].next = h
    }
    return h
}

func (self *Stream) alloc(ins Instr) Handle {
    h := Handle(len(self.nodes))
    self.nodes = append(self.nodes, _Node { ins: ins, live: true })
    self.size++
    self.dirty = true
    self.link(h, ins)
    return h
}

// Replace substitutes the instruction at h, keeping everything that targets h.
func (self *Stream) Replace(h Handle, ins Instr) {
    p := self.node(h)
    self.unlink(h, p.ins)
    p.ins = ins
    self.link(h, ins)
    delete(self.moved, h)
}

// SetTarget retargets branch target i of site.
func (self *Stream) SetTarget(site Handle, i int, to Handle) {
    self.Replace(site, self.At(site).WithTarget(i, to))
}

func (self *Stream) link(site Handle, ins Instr) {
    for i, to := range ins.Targets() {
        if to != Nil {
            self.addRef(to, Ref { Site: site, Index: i })
        }
    }
}

func (self *Stream) unlink(site Handle, ins Instr) {
    for i, to := range ins.Targets() {
        if to != Nil {
            self.delRef(to, Ref { Site: site, Index: i })
        }
    }
}

func (self *Stream) addRef(to Handle, ref Ref) {
    if !self.Live(to) {
        panic(fmt.Sprintf("reference to an invalid instruction handle: %d", to))
    } else if m, ok := self.refs[to]; ok {
        m[ref] = struct{}{}
    } else {
        self.refs[to] = map[Ref]struct{} { ref: {} }
    }
}

func (self *Stream) delRef(to Handle, ref Ref) {
    if m, ok := self.refs[to]; ok {
        if delete(m, ref); len(m) == 0 {
            delete(self.refs, to)
        }
    }
}

/** Exception Table **/

// AddException appends an exception table entry and returns its index. Nil
// fields may be resolved later with SetException.
func (self *Stream) AddException(start Handle, end Handle, handler Handle, catchType uint16) int {
    i := len(self.excs)
    self.excs = append(self.excs, ExceptionRange { CatchType: catchType })
    self.SetException(i, X_start, start)
    self.SetException(i, X_end, end)
    self.SetException(i, X_handler, handler)
    return i
}

// SetException changes one field of exception table entry i.
func (self *Stream) SetException(i int, field int, to Handle) {
    e := &self.excs[i]
    p := [...]*Handle { &e.Start, &e.End, &e.Handler }[field]

    /* drop the old reference */
    if *p != Nil {
        self.delRef(*p, Ref { Index: i * 3 + field })
    }

    /* add the new one */
    if *p = to; to != Nil {
        self.addRef(to, Ref { Index: i * 3 + field })
    }
}

func (self *Stream) Exceptions() []ExceptionRange {
    return append([]ExceptionRange(nil), self.excs...)
}

// Protected reports whether h lies inside any exception range.
func (self *Stream) Protected(h Handle) bool {
    pos := self.Pos(h)

    /* check every range */
    for _, e := range self.excs {
        if e.Start != Nil && self.Pos(e.Start) <= pos && (e.End == Nil || pos < self.Pos(e.End)) {
            return true
        }
    }

    /* not covered */
    return false
}

/** References **/

// Targeters lists every reference to h, ordered by site and index.
func (self *Stream) Targeters(h Handle) []Ref {
    m := self.refs[h]
    ret := make([]Ref, 0, len(m))

    /* collect the references */
    for ref := range m {
        ret = append(ret, ref)
    }

    /* keep the order stable */
    slices.SortFunc(ret, func(a Ref, b Ref) bool {
        return a.Site < b.Site || (a.Site == b.Site && a.Index < b.Index)
    })
    return ret
}

// HasTargeters reports whether h is a jump target or an exception table
// boundary, that is, a control flow merge point.
func (self *Stream) HasTargeters(h Handle) bool {
    return len(self.refs[h]) != 0
}

// Redirect moves every reference to `from` onto `to`.
func (self *Stream) Redirect(from Handle, to Handle) error {
    if from == to {
        return nil
    }

    /* the new target must exist if anything is moved */
    if self.HasTargeters(from) && !self.Live(to) {
        return errStructural("redirect", self.Pos(from), "redirecting to an invalid instruction")
    }

    /* move all the references */
    for _, ref := range self.Targeters(from) {
        self.retarget(ref, to)
    }
    return nil
}

func (self *Stream) retarget(ref Ref, to Handle) {
    if ref.Site != Nil {
        self.SetTarget(ref.Site, ref.Index, to)
    } else {
        i, field := ref.entry()
        self.SetException(i, field, to)
    }
}

// Moved reports whether a jump target of h was redirected to a fallback by a
// deletion, since h was last replaced.
func (self *Stream) Moved(h Handle) bool {
    return self.moved[h]
}

/** Deletion **/

// Delete removes h, redirecting whatever targets it to fallback.
func (self *Stream) Delete(h Handle, fallback Handle) error {
    return self.DeleteRange(h, h, fallback)
}

// DeleteRange removes the instructions from `from` to `to` inclusively.
// References held by the removed instructions are dropped, and references to
// them from outside the range are redirected to fallback, which must then be
// a live instruction outside the range. The stream is unchanged on error.
func (self *Stream) DeleteRange(from Handle, to Handle, fallback Handle) error {
    var ext []Ref
    var set = make(map[Handle]bool)

    /* both ends must be valid */
    if !self.Live(from) || !self.Live(to) {
        return errStructural("delete", -1, "deleting an invalid instruction")
    }

    /* collect the range */
    for p := from;; p = self.nodes[p].next {
        if p == Nil {
            return errStructural("delete", self.Pos(from), "range end precedes range start")
        }
        if set[p] = true; p == to {
            break
        }
    }

    /* find all the references coming from outside of the range */
    for p := range set {
        for ref := range self.refs[p] {
            if !set[ref.Site] {
                ext = append(ext, ref)
            }
        }
    }

    /* the fallback must survive the deletion */
    if len(ext) != 0 && (!self.Live(fallback) || set[fallback]) {
        return errStructural("delete", self.Pos(from), fmt.Sprintf("%d dangling reference(s) without a valid fallback", len(ext)))
    }

    /* redirect the external references, remembering the branches that moved */
    for _, ref := range ext {
        if self.retarget(ref, fallback); ref.Site != Nil {
            self.moved[ref.Site] = true
        }
    }

    /* drop the outgoing references and unlink every node */
    for p := from; ; {
        nb := &self.nodes[p]
        nx := nb.next
        self.unlink(p, nb.ins)
        self.remove(p)
        if p == to {
            break
        }
        p = nx
    }
    return nil
}

func (self *Stream) remove(h Handle) {
    p := &self.nodes[h]
    p.live = false
    self.size--
    self.dirty = true

    /* fix the previous node */
    if p.prev == Nil {
        self.head = p.next
    } else {
        self.nodes[p.prev].next = p.next
    }

    /* fix the next node */
    if p.next == Nil {
        self.tail = p.prev
    } else {
        self.nodes[p.next].prev = p.prev
    }

    /* a removed node is never targeted */
    delete(self.refs, h)
    delete(self.moved, h)
}

/** Positions **/

// Renumber assigns consecutive positions to all live instructions.
func (self *Stream) Renumber() {
    i := 0
    for p := self.head; p != Nil; p = self.nodes[p].next {
        self.nodes[p].pos = i
        i++
    }
    self.dirty = false
}

// Pos returns the position of h, renumbering the stream if it has been edited
// since the last renumbering. Deleted handles have position -1.
func (self *Stream) Pos(h Handle) int {
    if !self.Live(h) {
        return -1
    }
    if self.dirty {
        self.Renumber()
    }
    return self.nodes[h].pos
}

/** Integrity **/

// Verify checks the linkage of the stream and the consistency of the
// reference index.
func (self *Stream) Verify() error {
    n := 0
    q := Nil

    /* check the linked list */
    for p := self.head; p != Nil; p = self.nodes[p].next {
        if !self.nodes[p].live {
            return errStructural("verify", n, "dead instruction in the stream")
        }
        if self.nodes[p].prev != q {
            return errStructural("verify", n, "broken backward link")
        }
        q = p
        n++
    }

    /* check the counters */
    if q != self.tail || n != self.size {
        return errStructural("verify", n, "broken stream tail")
    }

    /* every branch target must be live and indexed */
    for p := self.head; p != Nil; p = self.nodes[p].next {
        for i, to := range self.nodes[p].ins.Targets() {
            if !self.Live(to) {
                return errStructural("verify", self.Pos(p), "branch to an invalid instruction")
            }
            if _, ok := self.refs[to][Ref { Site: p, Index: i }]; !ok {
                return errStructural("verify", self.Pos(p), "branch missing from the reference index")
            }
        }
    }

    /* every exception table entry must point to live instructions */
    for i, e := range self.excs {
        if !self.Live(e.Start) || !self.Live(e.Handler) || (e.End != Nil && !self.Live(e.End)) {
            return errStructural("verify", -1, fmt.Sprintf("exception table entry %d is dangling", i))
        }
    }

    /* every indexed reference must still exist */
    for to, m := range self.refs {
        for ref := range m {
            if ref.Site == Nil {
                continue
            }
            if !self.Live(ref.Site) {
                return errStructural("verify", self.Pos(to), "reference from a deleted instruction")
            }
            if tt := self.nodes[ref.Site].ins.Targets(); ref.Index >= len(tt) || tt[ref.Index] != to {
                return errStructural("verify", self.Pos(to), "stale reference in the index")
            }
        }
    }
    return nil
}

// Disassemble formats the stream, with branch targets shown as positions.
func (self *Stream) Disassemble() string {
    var buf []string
    var pos = make(map[Handle]int, self.size)

    /* assign positions */
    for i, p := range self.Handles() {
        pos[p] = i
    }

    /* format every instruction */
    for _, p := range self.Handles() {
        ins := self.At(p)

        /* show positions instead of handles */
        for i, to := range ins.Targets() {
            ins = ins.WithTarget(i, Handle(pos[to]))
        }

        /* mark the jump targets */
        if self.HasTargeters(p) {
            buf = append(buf, fmt.Sprintf("L_%d:", pos[p]))
        }

        /* add to the buffer */
        buf = append(buf, fmt.Sprintf("    %4d  %s", pos[p], ins))
    }
    return strings.Join(buf, "\n")
}
