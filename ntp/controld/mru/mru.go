/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package mru keeps the most-recently-used client table: one entry per
remote endpoint seen, ordered by last receive time with the newest at
the head. The control responder only reads it; the daemon's receive
path feeds it.
*/
package mru

import (
	"net/netip"

	"github.com/cespare/xxhash"

	"github.com/timekeep/timekeep/ntp/control"
	"github.com/timekeep/timekeep/ntp/controld"
)

// node wraps an entry with its list and hash links.
type node struct {
	entry controld.MRUEntry

	newer *node // toward head
	older *node // toward tail
}

// List is the in-memory MRU table. It is not safe for concurrent use;
// the daemon serializes access the same way it serializes the
// responder.
type List struct {
	head   *node
	tail   *node
	byAddr map[uint64]*node
	maxlen int

	// lifetime accounting; these counters are not copied into the
	// SystemSnapshot, so the mru_* system variables do not report them
	Exists      uint64
	New         uint64
	RecycleOld  uint64
	RecycleFull uint64
	Peak        uint64
}

// NewList builds an empty table bounded to maxlen entries.
func NewList(maxlen int) *List {
	return &List{
		byAddr: make(map[uint64]*node),
		maxlen: maxlen,
	}
}

func hashAddr(addr netip.AddrPort) uint64 {
	b, _ := addr.MarshalBinary()
	return xxhash.Sum64(b)
}

// Len returns the current number of entries.
func (l *List) Len() int {
	return len(l.byAddr)
}

// Oldest returns the tail entry, nil when empty.
func (l *List) Oldest() *controld.MRUEntry {
	if l.tail == nil {
		return nil
	}
	return &l.tail.entry
}

// Newer returns the entry one step toward the head, nil at the head.
func (l *List) Newer(e *controld.MRUEntry) *controld.MRUEntry {
	n := l.byAddr[hashAddr(e.Addr)]
	if n == nil || n.newer == nil {
		return nil
	}
	return &n.newer.entry
}

// Lookup finds the entry for addr, nil when unknown.
func (l *List) Lookup(addr netip.AddrPort) *controld.MRUEntry {
	n := l.byAddr[hashAddr(addr)]
	if n == nil {
		return nil
	}
	return &n.entry
}

// Observe records one packet from addr, bumping its entry to the head
// or creating one, recycling the oldest entry when the table is full.
func (l *List) Observe(addr netip.AddrPort, now control.LFP, vnMode uint8, restrict uint16, local *controld.Endpoint) {
	key := hashAddr(addr)
	if n, ok := l.byAddr[key]; ok {
		l.Exists++
		n.entry.Last = now
		n.entry.Count++
		n.entry.VnMode = vnMode
		n.entry.Restrict = restrict
		n.entry.Local = local
		l.moveToHead(n)
		return
	}

	var n *node
	if l.maxlen > 0 && len(l.byAddr) >= l.maxlen {
		// full: recycle the tail for the newcomer
		l.RecycleFull++
		n = l.tail
		l.unlink(n)
		delete(l.byAddr, hashAddr(n.entry.Addr))
		n.entry = controld.MRUEntry{}
	} else {
		l.New++
		n = &node{}
	}
	n.entry = controld.MRUEntry{
		Addr:     addr,
		First:    now,
		Last:     now,
		Count:    1,
		VnMode:   vnMode,
		Restrict: restrict,
		Local:    local,
	}
	l.byAddr[key] = n
	l.pushHead(n)
	if uint64(len(l.byAddr)) > l.Peak {
		l.Peak = uint64(len(l.byAddr))
	}
}

func (l *List) pushHead(n *node) {
	n.older = l.head
	n.newer = nil
	if l.head != nil {
		l.head.newer = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *List) unlink(n *node) {
	if n.newer != nil {
		n.newer.older = n.older
	} else {
		l.head = n.older
	}
	if n.older != nil {
		n.older.newer = n.newer
	} else {
		l.tail = n.newer
	}
	n.newer = nil
	n.older = nil
}

func (l *List) moveToHead(n *node) {
	if l.head == n {
		return
	}
	l.unlink(n)
	l.pushHead(n)
}
