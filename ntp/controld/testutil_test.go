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
	"encoding/binary"
	"net/netip"

	"github.com/timekeep/timekeep/ntp/control"
)

// fakeTransport records everything the responder sends.
type fakeTransport struct {
	sent [][]byte
}

func (f *fakeTransport) Send(_ netip.AddrPort, _ *Endpoint, b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, cp)
	return nil
}

// fixedClock ticks only when the test says so.
type fixedClock struct {
	now control.LFP
}

func (c *fixedClock) Now() control.LFP {
	return c.now
}

func (c *fixedClock) advance(seconds uint32) {
	c.now = control.NewLFP(c.now.Uint()+seconds, c.now.Frac())
}

// seqRandom hands out a fixed sequence, cycling.
type seqRandom struct {
	vals []uint32
	i    int
}

func (r *seqRandom) Uint32() uint32 {
	if len(r.vals) == 0 {
		return 0x12345678
	}
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

// nullStats drops every count.
type nullStats struct{}

func (nullStats) IncRequests()     {}
func (nullStats) IncBadPkts()      {}
func (nullStats) IncResponses()    {}
func (nullStats) IncFrags()        {}
func (nullStats) IncErrors()       {}
func (nullStats) IncTooShort()     {}
func (nullStats) IncInputResp()    {}
func (nullStats) IncInputFrag()    {}
func (nullStats) IncInputErr()     {}
func (nullStats) IncBadOffset()    {}
func (nullStats) IncBadVersion()   {}
func (nullStats) IncDataTooShort() {}
func (nullStats) IncBadOp()        {}

// listMRU is an MRUList over a slice ordered oldest first.
type listMRU struct {
	entries []*MRUEntry
}

func (l *listMRU) Len() int { return len(l.entries) }

func (l *listMRU) Oldest() *MRUEntry {
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[0]
}

func (l *listMRU) Newer(e *MRUEntry) *MRUEntry {
	for i, cur := range l.entries {
		if cur == e {
			if i+1 < len(l.entries) {
				return l.entries[i+1]
			}
			return nil
		}
	}
	return nil
}

func (l *listMRU) Lookup(addr netip.AddrPort) *MRUEntry {
	for _, cur := range l.entries {
		if cur.Addr == addr {
			return cur
		}
	}
	return nil
}

// testHarness bundles a responder with its fakes.
type testHarness struct {
	r       *Responder
	tr      *fakeTransport
	clock   *fixedClock
	random  *seqRandom
	keys    *SymKeyStore
	peers   *MemPeerStore
	system  *HostState
	mru     *listMRU
	eps     *MemEndpoints
	res     *MemRestrictions
	refclks *MemRefclocks
}

const testControlKey = 7

func testPeer(assoc uint16) *Peer {
	return &Peer{
		AssocID:    assoc,
		SrcAdr:     netip.MustParseAddrPort("192.0.2.10:123"),
		DstAdr:     netip.MustParseAddrPort("192.0.2.1:123"),
		Selection:  6,
		Configured: true,
		Reach:      0xff,
		Leap:       0,
		HMode:      3,
		PMode:      4,
		Stratum:    2,
		PPoll:      6,
		HPoll:      6,
		Precision:  -24,
		RootDelay:  0.001,
		RootDisp:   0.002,
		RefID:      0x7f000001,
		RefTime:    control.NewLFP(0xdfb39d2d, 0x8598591b),
		Rec:        control.NewLFP(0xdfb39d2e, 0),
		Xmt:        control.NewLFP(0xdfb39d2f, 0),
		Delay:      0.000136,
		Offset:     0.000163,
		Jitter:     0.000054,
		Disp:       0.005123,
	}
}

func newHarness() *testHarness {
	h := &testHarness{
		tr:     &fakeTransport{},
		clock:  &fixedClock{now: control.NewLFP(0xe0000000, 0)},
		random: &seqRandom{},
		keys:   NewSymKeyStore(),
		peers: &MemPeerStore{
			List:   []*Peer{testPeer(1), testPeer(2)},
			SysIdx: 0,
		},
		system: &HostState{Snap: SystemSnapshot{
			Leap:      0,
			Stratum:   2,
			Precision: -24,
			RootDelay: 0.064685,
			RootDisp:  0.076350,
			RefID:     0xae8d4474, // 174.141.68.116
			RefTime:   control.NewLFP(0xdfb39d2d, 0x8598591b),
			Poll:      10,
			MinPoll:   3,
			Offset:    -0.000180,
			Drift:     0.000000314,
			Jitter:    0.000246,
			ClkJitter: 0.000140,
			ClkWander: 0.000000009,
			Processor: "x86_64",
			System:    "Linux/5.12.0",
			Version:   "ntpcontrold 1.0.0",
		}},
		mru:     &listMRU{},
		eps:     &MemEndpoints{},
		res:     &MemRestrictions{},
		refclks: &MemRefclocks{},
	}
	h.keys.Add(testControlKey, "MD5", []byte("sekret"))
	h.r = New(Deps{
		Transport:    h.tr,
		Keys:         h.keys,
		Peers:        h.peers,
		Refclocks:    h.refclks,
		System:       h.system,
		MRU:          h.mru,
		Endpoints:    h.eps,
		Restrictions: h.res,
		Configurer:   NopConfigurer{},
		Random:       h.random,
		Clock:        h.clock,
		Stats:        nullStats{},
	})
	h.r.AuthKeyID = testControlKey
	return h
}

var testSrc = netip.MustParseAddrPort("203.0.113.5:41234")

// buildRequest assembles a wire-format request datagram.
func buildRequest(opcode uint8, associd uint16, data []byte) []byte {
	head := control.MsgHead{
		VnMode:        control.VnModeWord(0, control.VersionMax, control.Mode),
		REMOp:         opcode,
		Sequence:      1,
		AssociationID: associd,
		Count:         uint16(len(data)),
	}
	pkt := make([]byte, control.HeaderLen+len(data))
	head.Encode(pkt)
	copy(pkt[control.HeaderLen:], data)
	for len(pkt)&3 != 0 {
		pkt = append(pkt, 0)
	}
	return pkt
}

// authenticate appends keyid and MAC the way an authorized client
// would.
func (h *testHarness) authenticate(pkt []byte) []byte {
	for len(pkt)&7 != 0 {
		pkt = append(pkt, 0)
	}
	var keyid [4]byte
	binary.BigEndian.PutUint32(keyid[:], testControlKey)
	mac := h.keys.ComputeMAC(testControlKey, pkt)
	pkt = append(pkt, keyid[:]...)
	return append(pkt, mac...)
}

// process hands a datagram to the responder from the default source.
func (h *testHarness) process(pkt []byte) {
	h.r.Process(&Request{
		Data:     pkt,
		Src:      testSrc,
		Received: h.clock.Now(),
	})
}

// lastMsg decodes the most recent datagram sent.
func (h *testHarness) lastMsg() *control.Msg {
	if len(h.tr.sent) == 0 {
		return nil
	}
	m, err := control.DecodeMsg(h.tr.sent[len(h.tr.sent)-1])
	if err != nil {
		panic(err)
	}
	return m
}

// allData concatenates the data areas of every fragment sent.
func (h *testHarness) allData() []byte {
	var out []byte
	for _, pkt := range h.tr.sent {
		m, err := control.DecodeMsg(pkt)
		if err != nil {
			panic(err)
		}
		out = append(out, m.Data...)
	}
	return out
}
