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

	log "github.com/sirupsen/logrus"

	"github.com/timekeep/timekeep/ntp/control"
)

// maxDataLineLen is where text payload lines wrap.
const maxDataLineLen = 72

// Request is one inbound control datagram with its receive metadata.
type Request struct {
	Data         []byte
	Src          netip.AddrPort
	Local        *Endpoint
	Received     control.LFP
	RestrictMask uint16
}

// response is the build state of one logical response. It lives for a
// single handler invocation; the long-lived pieces (salt, counters,
// collaborators) stay on the Responder.
type response struct {
	r *Responder

	req     *Request
	leap    uint8
	version uint8
	opcode  uint8
	seq     uint16
	status  uint16
	associd uint16

	authenticate bool
	authOK       bool
	keyID        uint32

	// request parse cursor over the inbound data area
	reqData []byte
	reqPos  int

	buf     [control.MaxDataLen]byte
	used    int
	lineLen int
	sent    bool // suppresses the separator before the first token
	textual bool
	offset  int
	frags   int
}

// putData writes payload into the response, fragmenting and starting
// another datagram when this one is full. For text, tokens are
// separated by ", " and lines wrap with ",\r\n" at maxDataLineLen; a
// token that no longer fits triggers a flush with More set, so every
// fragment ends on a complete tag=value pair. Binary payload may split
// anywhere.
func (ctx *response) putData(data []byte, bin bool) {
	if !bin {
		ctx.textual = true
		if ctx.sent {
			if len(data)+ctx.lineLen+2 >= maxDataLineLen {
				ctx.putRaw([]byte(",\r\n"))
				ctx.lineLen = 0
			} else {
				ctx.putRaw([]byte(", "))
				ctx.lineLen += 2
			}
		}
		// keep whole tokens inside one fragment when possible
		if ctx.used+len(data) > control.MaxDataLen && len(data) <= control.MaxDataLen {
			ctx.flush(true)
		}
	}
	ctx.putRaw(data)
	ctx.lineLen += len(data)
	ctx.sent = true
}

// putRaw copies bytes into the buffer, flushing full datagrams.
func (ctx *response) putRaw(data []byte) {
	for len(data) > 0 {
		if ctx.used == control.MaxDataLen {
			ctx.flush(true)
		}
		n := copy(ctx.buf[ctx.used:], data)
		ctx.used += n
		data = data[n:]
	}
}

// flush writes out the current fragment and prepares another if more
// data follows. The final flush of a textual response gets a trailing
// CRLF when two bytes remain.
func (ctx *response) flush(more bool) {
	dlen := ctx.used
	if !more && ctx.textual && dlen+2 <= control.MaxDataLen {
		ctx.buf[dlen] = '\r'
		ctx.buf[dlen+1] = '\n'
		dlen += 2
	}
	sendlen := dlen + control.HeaderLen
	// pad to a multiple of 32 bits
	for sendlen&0x3 != 0 {
		sendlen++
	}

	pkt := make([]byte, sendlen, sendlen+control.MaxMACLen)
	remop := uint8(control.BitResponse) | ctx.opcode&control.OpMask
	if more {
		remop |= control.BitMore
	}
	head := control.MsgHead{
		VnMode:        control.VnModeWord(ctx.leap, ctx.version, control.Mode),
		REMOp:         remop,
		Sequence:      ctx.seq,
		Status:        ctx.status,
		AssociationID: ctx.associd,
		Offset:        uint16(ctx.offset),
		Count:         uint16(dlen),
	}
	head.Encode(pkt)
	copy(pkt[control.HeaderLen:], ctx.buf[:dlen])

	if ctx.authenticate {
		// the MAC must begin on a 64 bit boundary
		for len(pkt)&7 != 0 {
			pkt = append(pkt, 0)
		}
		var keyid [4]byte
		binary.BigEndian.PutUint32(keyid[:], ctx.keyID)
		mac := ctx.r.keys.ComputeMAC(ctx.keyID, pkt)
		if mac == nil {
			log.Fatalf("MAC computation failed for key %d", ctx.keyID)
		}
		pkt = append(pkt, keyid[:]...)
		pkt = append(pkt, mac...)
	}

	if err := ctx.r.transport.Send(ctx.req.Src, ctx.req.Local, pkt); err != nil {
		log.Errorf("failed to send control response to %s: %v", ctx.req.Src, err)
	}
	if more {
		ctx.r.stats.IncFrags()
	} else {
		ctx.r.stats.IncResponses()
	}

	ctx.frags++
	ctx.offset += dlen
	ctx.used = 0
}

// sendError emits a header-only response with the Error bit set and
// the error code in the status high byte.
func (ctx *response) sendError(code uint8) {
	ctx.r.stats.IncErrors()
	log.Debugf("sending control error %d to %s", code, ctx.req.Src)

	ctx.used = 0
	ctx.textual = false
	ctx.offset = 0
	ctx.status = uint16(code) << 8

	pkt := make([]byte, control.HeaderLen, control.HeaderLen+control.MaxMACLen)
	head := control.MsgHead{
		VnMode:        control.VnModeWord(ctx.leap, ctx.version, control.Mode),
		REMOp:         control.BitResponse | control.BitError | ctx.opcode&control.OpMask,
		Sequence:      ctx.seq,
		Status:        ctx.status,
		AssociationID: ctx.associd,
	}
	head.Encode(pkt)

	if ctx.authenticate {
		for len(pkt)&7 != 0 {
			pkt = append(pkt, 0)
		}
		var keyid [4]byte
		binary.BigEndian.PutUint32(keyid[:], ctx.keyID)
		mac := ctx.r.keys.ComputeMAC(ctx.keyID, pkt)
		pkt = append(pkt, keyid[:]...)
		pkt = append(pkt, mac...)
	}
	if err := ctx.r.transport.Send(ctx.req.Src, ctx.req.Local, pkt); err != nil {
		log.Errorf("failed to send control error to %s: %v", ctx.req.Src, err)
	}
}
