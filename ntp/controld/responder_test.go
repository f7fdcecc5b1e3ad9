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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timekeep/timekeep/ntp/control"
)

func TestUnknownOpcode(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(0x1f, 0, nil))

	m := h.lastMsg()
	require.NotNil(t, m)
	require.True(t, m.HasError())
	require.Equal(t, control.ErrBadOp, m.ErrorCode())
	require.Equal(t, uint16(0), m.Count)
}

func TestFramingErrorsDropSilently(t *testing.T) {
	h := newHarness()

	// too short
	h.process([]byte{0x1e, 0x02})
	require.Empty(t, h.tr.sent)

	// response bit set on input
	pkt := buildRequest(control.OpReadVar, 0, nil)
	pkt[1] |= control.BitResponse
	h.process(pkt)
	require.Empty(t, h.tr.sent)

	// nonzero offset
	pkt = buildRequest(control.OpReadVar, 0, nil)
	pkt[9] = 4
	h.process(pkt)
	require.Empty(t, h.tr.sent)

	// foreign version
	pkt = buildRequest(control.OpReadVar, 0, nil)
	pkt[0] = control.VnModeWord(0, 7, control.Mode)
	h.process(pkt)
	require.Empty(t, h.tr.sent)
}

func TestCountPastEndIsBadFmt(t *testing.T) {
	h := newHarness()
	pkt := buildRequest(control.OpReadVar, 0, nil)
	binary.BigEndian.PutUint16(pkt[10:12], 100)
	h.process(pkt)

	m := h.lastMsg()
	require.NotNil(t, m)
	require.True(t, m.HasError())
	require.Equal(t, control.ErrBadFmt, m.ErrorCode())
}

func TestReadVarDefaultSet(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadVar, 0, nil))

	require.NotEmpty(t, h.tr.sent)
	m := h.lastMsg()
	require.False(t, m.HasError())
	require.False(t, m.HasMore())

	text := string(h.allData())
	require.Contains(t, text, `version="ntpcontrold 1.0.0"`)
	require.Contains(t, text, "stratum=2")
	require.Contains(t, text, "offset=-0.180000")
	require.Contains(t, text, "refid=174.141.68.116")
	require.True(t, strings.HasSuffix(text, "\r\n"))
}

func TestReadVarNamed(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadVar, 0, []byte("stratum,precision")))

	text := string(h.allData())
	require.Contains(t, text, "stratum=2")
	require.Contains(t, text, "precision=-24")
	require.NotContains(t, text, "version=")
}

func TestReadVarUnknownName(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadVar, 0, []byte("nosuchvar")))

	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrUnknownVar, m.ErrorCode())
}

func TestReadVarExtensionVariable(t *testing.T) {
	h := newHarness()
	h.r.SetSysVar("campus=main", FlagDef|FlagRO)

	h.process(buildRequest(control.OpReadVar, 0, []byte("campus")))
	text := string(h.allData())
	require.Contains(t, text, "campus=main")

	// flagged DEF, so the default set carries it too
	h.tr.sent = nil
	h.process(buildRequest(control.OpReadVar, 0, nil))
	require.Contains(t, string(h.allData()), "campus=main")
}

func TestReadVarPeer(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadVar, 2, []byte("srcadr,stratum")))

	text := string(h.allData())
	require.Contains(t, text, "srcadr=192.0.2.10")
	require.Contains(t, text, "stratum=2")
}

func TestReadVarBadAssoc(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadVar, 999, nil))

	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrBadAssoc, m.ErrorCode())
}

func TestReadStatusLists(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadStat, 0, nil))

	m := h.lastMsg()
	require.False(t, m.HasError())
	assocs, err := m.GetAssociations()
	require.NoError(t, err)
	require.Len(t, assocs, 2)
	require.Contains(t, assocs, uint16(1))
	require.Contains(t, assocs, uint16(2))
	require.True(t, assocs[1].PeerStatus.Configured)
	require.True(t, assocs[1].PeerStatus.Reachable)
}

func TestReadStatusSinglePeer(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadStat, 1, nil))

	m := h.lastMsg()
	require.False(t, m.HasError())
	text := string(h.allData())
	require.Contains(t, text, "srcadr=192.0.2.10")
}

func TestWriteVarUnauthenticated(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpWriteVar, 0, []byte("leap=0")))

	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrPermission, m.ErrorCode())
}

func TestWriteVarAuthenticatedLeapNoop(t *testing.T) {
	h := newHarness()
	pkt := h.authenticate(buildRequest(control.OpWriteVar, 0, []byte("leap=1")))
	h.process(pkt)

	m := h.lastMsg()
	require.False(t, m.HasError())
	// the write is accepted but applied nowhere
	require.Equal(t, uint8(0), h.system.Snap.Leap)

	// the response is authenticated under the request's key
	pktOut := h.tr.sent[len(h.tr.sent)-1]
	n := len(pktOut) - 20
	require.Equal(t, uint32(testControlKey), binary.BigEndian.Uint32(pktOut[n:n+4]))
	require.True(t, h.keys.VerifyMAC(testControlKey, pktOut[:n], pktOut[n+4:]))
}

func TestWriteVarRejectsPeerWrite(t *testing.T) {
	h := newHarness()
	pkt := h.authenticate(buildRequest(control.OpWriteVar, 1, []byte("leap=0")))
	h.process(pkt)

	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrPermission, m.ErrorCode())
}

func TestWriteVarValueChecks(t *testing.T) {
	h := newHarness()

	// read-only variable
	pkt := h.authenticate(buildRequest(control.OpWriteVar, 0, []byte("stratum=1")))
	h.process(pkt)
	require.Equal(t, control.ErrPermission, h.lastMsg().ErrorCode())

	// non-decimal value
	h.tr.sent = nil
	pkt = h.authenticate(buildRequest(control.OpWriteVar, 0, []byte("leap=abc")))
	h.process(pkt)
	require.Equal(t, control.ErrBadFmt, h.lastMsg().ErrorCode())

	// bits outside the writable mask
	h.tr.sent = nil
	pkt = h.authenticate(buildRequest(control.OpWriteVar, 0, []byte("leap=4")))
	h.process(pkt)
	require.Equal(t, control.ErrBadValue, h.lastMsg().ErrorCode())
}

func TestWriteVarExtension(t *testing.T) {
	h := newHarness()
	h.r.SetSysVar("campus=main", FlagRW)

	pkt := h.authenticate(buildRequest(control.OpWriteVar, 0, []byte("campus=remote")))
	h.process(pkt)
	require.False(t, h.lastMsg().HasError())

	val, ok := h.r.GetSysVar("campus")
	require.True(t, ok)
	require.Equal(t, "remote", val)
}

func TestWriteClockRejected(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpWriteClock, 0, nil))

	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrPermission, m.ErrorCode())
}

func TestUnspecStatusOnly(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpUnspec, 0, nil))

	m := h.lastMsg()
	require.False(t, m.HasError())
	require.Equal(t, uint16(0), m.Count)
	require.NotZero(t, m.Status)

	h.tr.sent = nil
	h.process(buildRequest(control.OpUnspec, 999, nil))
	require.Equal(t, control.ErrBadAssoc, h.lastMsg().ErrorCode())
}

func TestConfigureNoModifyRestriction(t *testing.T) {
	h := newHarness()
	pkt := h.authenticate(buildRequest(control.OpConfigure, 0, []byte("server 192.0.2.77")))
	h.r.Process(&Request{
		Data:         pkt,
		Src:          testSrc,
		Received:     h.clock.Now(),
		RestrictMask: RestrictNoModify,
	})

	text := string(h.allData())
	require.Contains(t, text, "nomodify")
	require.Equal(t, uint64(1), h.system.Snap.SSRestricted)
}

func TestConfigureDelegates(t *testing.T) {
	h := newHarness()
	pkt := h.authenticate(buildRequest(control.OpConfigure, 0, []byte("server 192.0.2.77")))
	h.process(pkt)

	// the NopConfigurer reports one error
	text := string(h.allData())
	require.Contains(t, text, "not enabled")

	// nonzero association is rejected outright
	h.tr.sent = nil
	pkt = h.authenticate(buildRequest(control.OpConfigure, 3, []byte("x")))
	h.process(pkt)
	require.Equal(t, control.ErrBadValue, h.lastMsg().ErrorCode())
}

func TestReadClockNoRefclock(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadClock, 0, nil))

	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrBadAssoc, m.ErrorCode())
}

func TestReadClockDefaultSet(t *testing.T) {
	h := newHarness()
	clk := testPeer(9)
	clk.IsRefclock = true
	clk.RefclockName = "NMEA(0)"
	h.peers.List = append(h.peers.List, clk)
	h.refclks.Stats = map[uint16]*RefclockStat{
		9: {
			Name:       "NMEA",
			TimeCode:   "$GPRMC,0",
			Polls:      42,
			Desc:       "Generic GPS",
			FudgeTime1: 0.1,
			HaveFlags:  ClkHaveTime1,
		},
	}

	h.process(buildRequest(control.OpReadClock, 9, nil))
	text := string(h.allData())
	require.Contains(t, text, `name="NMEA"`)
	require.Contains(t, text, `timecode="$GPRMC,0"`)
	require.Contains(t, text, "poll=42")
	require.Contains(t, text, `device="Generic GPS"`)
	require.Contains(t, text, "fudgetime1=100.000")

	// unknown clock variable
	h.tr.sent = nil
	h.process(buildRequest(control.OpReadClock, 9, []byte("bogus")))
	require.Equal(t, control.ErrUnknownVar, h.lastMsg().ErrorCode())
}

func TestFragmentationInvariants(t *testing.T) {
	h := newHarness()
	// a huge extension variable forces the default response past one
	// datagram
	long := strings.Repeat("x", 120)
	for _, name := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		h.r.SetSysVar(name+"="+long, FlagDef|FlagRO)
	}
	h.process(buildRequest(control.OpReadVar, 0, nil))

	require.Greater(t, len(h.tr.sent), 1)
	var offset int
	for i, pkt := range h.tr.sent {
		m, err := control.DecodeMsg(pkt)
		require.NoError(t, err)
		require.Equal(t, i != len(h.tr.sent)-1, m.HasMore())
		require.Equal(t, uint16(offset), m.Offset)
		require.Equal(t, uint16(1), m.Sequence)
		offset += int(m.Count)
		require.LessOrEqual(t, int(m.Count), control.MaxDataLen)
	}

	// concatenated payload is one well-formed token stream
	kv, err := control.NormalizeData(h.allData())
	require.NoError(t, err)
	require.Equal(t, long, kv["alpha"])
	require.Equal(t, long, kv["echo"])
}

func TestOversizedValueGetsBadFmt(t *testing.T) {
	h := newHarness()
	pkt := h.authenticate(buildRequest(control.OpWriteVar, 0,
		[]byte("leap="+strings.Repeat("9", 200))))
	h.process(pkt)

	m := h.lastMsg()
	require.True(t, m.HasError())
	require.Equal(t, control.ErrBadFmt, m.ErrorCode())
}

func TestTextLinesWrapAt72(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReadVar, 0, nil))

	for _, line := range strings.Split(string(h.allData()), "\r\n") {
		require.LessOrEqual(t, len(line), maxDataLineLen+2)
	}
}
