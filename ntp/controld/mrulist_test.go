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

package controld

import (
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timekeep/timekeep/ntp/control"
)

// fillMRU populates n entries, oldest first, with distinct addresses
// and ascending last-seen times.
func fillMRU(h *testHarness, n int) {
	for i := 0; i < n; i++ {
		h.mru.entries = append(h.mru.entries, &MRUEntry{
			Addr:     netip.MustParseAddrPort(fmt.Sprintf("198.51.100.%d:123", i+1)),
			First:    control.NewLFP(0xdf000000+uint32(i), 0),
			Last:     control.NewLFP(0xdf100000+uint32(i), 0),
			Count:    int64(i + 1),
			VnMode:   0x23,
			Restrict: 0,
		})
	}
}

func (h *testHarness) freshNonce() string {
	return h.r.generateNonce(&Request{Src: testSrc, Received: h.clock.Now()})
}

func (h *testHarness) mruQuery(t *testing.T, params string) map[string]string {
	t.Helper()
	h.tr.sent = nil
	h.process(buildRequest(control.OpReadMRU, 0, []byte(params)))
	if len(h.tr.sent) == 0 {
		return nil
	}
	kv, err := control.NormalizeData(h.allData())
	require.NoError(t, err)
	return kv
}

func TestMRUWithoutNonceIsSilent(t *testing.T) {
	h := newHarness()
	fillMRU(h, 3)

	kv := h.mruQuery(t, "frags=8")
	require.Nil(t, kv)

	// garbage nonce is just as silent
	kv = h.mruQuery(t, "nonce=deadbeefdeadbeefdeadbeef, frags=8")
	require.Nil(t, kv)
}

func TestMRUMissingBoundsRejected(t *testing.T) {
	h := newHarness()
	fillMRU(h, 3)

	h.tr.sent = nil
	h.process(buildRequest(control.OpReadMRU, 0,
		[]byte("nonce="+h.freshNonce())))
	m := h.lastMsg()
	require.NotNil(t, m)
	require.True(t, m.HasError())
	require.Equal(t, control.ErrBadValue, m.ErrorCode())

	// limit over the row cap is no better
	h.tr.sent = nil
	h.process(buildRequest(control.OpReadMRU, 0,
		[]byte(fmt.Sprintf("nonce=%s, limit=%d", h.freshNonce(), mruRowLimit+1))))
	require.Equal(t, control.ErrBadValue, h.lastMsg().ErrorCode())
}

func TestMRUFullWalk(t *testing.T) {
	h := newHarness()
	fillMRU(h, 5)

	kv := h.mruQuery(t, "nonce="+h.freshNonce()+", frags=8")
	require.NotNil(t, kv)

	// oldest first: entry 0 is the tail
	require.Equal(t, "198.51.100.1:123", kv["addr.0"])
	require.Equal(t, "198.51.100.5:123", kv["addr.4"])
	require.Contains(t, kv, "now")
	require.Equal(t, kv["last.4"], kv["last.newest"])
	// a fresh nonce for the next page rides along
	require.Len(t, kv["nonce"], 24)
}

func TestMRUResyncAnchor(t *testing.T) {
	h := newHarness()
	fillMRU(h, 5)
	anchor := h.mru.entries[2]

	params := fmt.Sprintf("nonce=%s, frags=8, last.0=%s, addr.0=%s",
		h.freshNonce(), anchor.Last, anchor.Addr)
	kv := h.mruQuery(t, params)
	require.NotNil(t, kv)

	// confirmation of the anchor, then its newer neighbors
	require.Equal(t, anchor.Last.String(), kv["last.older"])
	require.Equal(t, anchor.Addr.String(), kv["addr.older"])
	require.Equal(t, "198.51.100.4:123", kv["addr.0"])
	require.Equal(t, "198.51.100.5:123", kv["addr.1"])
	require.NotContains(t, kv, "addr.2")
}

func TestMRUResyncLostAnchor(t *testing.T) {
	h := newHarness()
	fillMRU(h, 5)
	anchor := h.mru.entries[2]

	// the entry was bumped: its last-seen no longer matches
	stale := control.NewLFP(anchor.Last.Uint()-100, 0)
	params := fmt.Sprintf("nonce=%s, frags=8, last.0=%s, addr.0=%s",
		h.freshNonce(), stale, anchor.Addr)
	h.tr.sent = nil
	h.process(buildRequest(control.OpReadMRU, 0, []byte(params)))

	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrUnknownVar, m.ErrorCode())
}

func TestMRUSecondAnchorWins(t *testing.T) {
	h := newHarness()
	fillMRU(h, 5)
	lost := h.mru.entries[3]
	good := h.mru.entries[2]

	params := fmt.Sprintf("nonce=%s, frags=8, last.0=%s, addr.0=%s, last.1=%s, addr.1=%s",
		h.freshNonce(),
		control.NewLFP(1, 1), lost.Addr,
		good.Last, good.Addr)
	kv := h.mruQuery(t, params)
	require.NotNil(t, kv)
	require.Equal(t, good.Last.String(), kv["last.older"])
	require.Equal(t, "198.51.100.4:123", kv["addr.0"])
}

func TestMRULimitOne(t *testing.T) {
	h := newHarness()
	fillMRU(h, 5)
	anchor := h.mru.entries[2]

	params := fmt.Sprintf("nonce=%s, limit=1, last.0=%s, addr.0=%s",
		h.freshNonce(), anchor.Last, anchor.Addr)
	kv := h.mruQuery(t, params)
	require.NotNil(t, kv)

	// limit=1 returns the anchor itself
	require.Equal(t, anchor.Addr.String(), kv["addr.0"])
	require.NotContains(t, kv, "addr.1")
}

func TestMRULimitBoundsEmission(t *testing.T) {
	h := newHarness()
	fillMRU(h, 10)

	kv := h.mruQuery(t, "nonce="+h.freshNonce()+", limit=3")
	require.NotNil(t, kv)
	require.Contains(t, kv, "addr.0")
	require.Contains(t, kv, "addr.2")
	require.NotContains(t, kv, "addr.3")
	// the walk did not drain the list, so no now= marker
	require.NotContains(t, kv, "now")
}

func TestMRUMinCountFilter(t *testing.T) {
	h := newHarness()
	fillMRU(h, 5) // counts 1..5

	kv := h.mruQuery(t, "nonce="+h.freshNonce()+", frags=8, mincount=4")
	require.NotNil(t, kv)
	require.Equal(t, "198.51.100.4:123", kv["addr.0"])
	require.Equal(t, "198.51.100.5:123", kv["addr.1"])
	require.NotContains(t, kv, "addr.2")
}

func TestMRUResFilters(t *testing.T) {
	h := newHarness()
	fillMRU(h, 4)
	h.mru.entries[1].Restrict = 0x50
	h.mru.entries[3].Restrict = 0x10

	kv := h.mruQuery(t, "nonce="+h.freshNonce()+", frags=8, resall=0x50")
	require.NotNil(t, kv)
	require.Equal(t, "198.51.100.2:123", kv["addr.0"])
	require.NotContains(t, kv, "addr.1")

	kv = h.mruQuery(t, "nonce="+h.freshNonce()+", frags=8, resany=0x10")
	require.NotNil(t, kv)
	require.Equal(t, "198.51.100.2:123", kv["addr.0"])
	require.Equal(t, "198.51.100.4:123", kv["addr.1"])
}

func TestMRUMaxLstIntFilter(t *testing.T) {
	h := newHarness()
	fillMRU(h, 3)
	now := h.clock.Now()
	h.mru.entries[0].Last = control.NewLFP(now.Uint()-1000, 0)
	h.mru.entries[1].Last = control.NewLFP(now.Uint()-10, 0)
	h.mru.entries[2].Last = control.NewLFP(now.Uint()-5, 0)

	kv := h.mruQuery(t, "nonce="+h.freshNonce()+", frags=8, maxlstint=60")
	require.NotNil(t, kv)
	require.Contains(t, kv, "addr.0")
	require.Contains(t, kv, "addr.1")
	require.NotContains(t, kv, "addr.2")
}

func TestMRURandomizedTagsPresent(t *testing.T) {
	h := newHarness()
	fillMRU(h, 3)

	kv := h.mruQuery(t, "nonce="+h.freshNonce()+", frags=8")
	require.NotNil(t, kv)

	// the first and last rows carry a three-letter fingerprint tag
	found := 0
	for k := range kv {
		var idx int
		var tag string
		if n, _ := fmt.Sscanf(k, "%3s.%d", &tag, &idx); n == 2 &&
			len(tag) == 3 && !isKnownMRUTag(tag) {
			found++
		}
	}
	require.GreaterOrEqual(t, found, 1)
}

func isKnownMRUTag(tag string) bool {
	switch tag {
	case "addr", "last", "first", "ct", "mv", "rs", "now", "nonce":
		return true
	}
	return false
}

func TestMRUNoMRUListRestriction(t *testing.T) {
	h := newHarness()
	fillMRU(h, 3)

	h.tr.sent = nil
	h.r.Process(&Request{
		Data:         buildRequest(control.OpReadMRU, 0, []byte("nonce="+h.freshNonce()+", frags=8")),
		Src:          testSrc,
		Received:     h.clock.Now(),
		RestrictMask: RestrictNoMRUList,
	})
	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrPermission, m.ErrorCode())
	require.Equal(t, uint64(1), h.system.Snap.SSRestricted)
}

func TestMRUNonceReplayAcrossPages(t *testing.T) {
	h := newHarness()
	fillMRU(h, 3)

	kv := h.mruQuery(t, "nonce="+h.freshNonce()+", frags=8")
	require.NotNil(t, kv)
	next := kv["nonce"]

	// the fresh nonce from the response works for the next page
	kv = h.mruQuery(t, "nonce="+next+", frags=8")
	require.NotNil(t, kv)

	// but not after the validity window has passed
	h.clock.advance(nonceTimeout + 1)
	kv = h.mruQuery(t, "nonce="+next+", frags=8")
	require.Nil(t, kv)
}
