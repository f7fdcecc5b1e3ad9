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
Package controld implements the server side of the NTP mode 6 control
protocol: the responder that ntpq and other operator tools talk to.
One inbound datagram drives one Process call, which may emit several
response fragments before returning. The responder owns no daemon
state of its own; peers, system variables, the MRU table, restrictions
and keys are collaborators consulted per request.
*/
package controld

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"

	"github.com/timekeep/timekeep/ntp/control"
)

// suspiciousLogInterval rate-limits the exploit warning per source.
const suspiciousLogInterval = 300

// remoteConfigBufSize bounds one remote configuration request.
const remoteConfigBufSize = 512

// Stats counts requests and responses, the way the daemon wants them
// counted. Implementations live in the stats subpackage.
type Stats interface {
	IncRequests()
	IncBadPkts()
	IncResponses()
	IncFrags()
	IncErrors()
	IncTooShort()
	IncInputResp()
	IncInputFrag()
	IncInputErr()
	IncBadOffset()
	IncBadVersion()
	IncDataTooShort()
	IncBadOp()
}

// Deps bundles the collaborators a Responder needs.
type Deps struct {
	Transport    Transport
	Keys         KeyStore
	Peers        PeerStore
	Refclocks    Refclocks
	System       SystemState
	MRU          MRUList
	Endpoints    Endpoints
	Restrictions Restrictions
	Configurer   Configurer
	Random       Random
	Clock        Clock
	Stats        Stats
}

// Responder handles mode 6 control requests. It is strictly
// single-threaded: callers must serialize Process invocations.
type Responder struct {
	transport    Transport
	keys         KeyStore
	peers        PeerStore
	refclocks    Refclocks
	system       SystemState
	mru          MRUList
	endpoints    Endpoints
	restrictions Restrictions
	configurer   Configurer
	random       Random
	clock        Clock
	stats        Stats

	// AuthKeyID is the key id that requests for opcodes requiring
	// authentication must authenticate with.
	AuthKeyID uint32

	extSysVar []Var

	salt        [4]uint32
	saltUpdated uint32

	quietUntil map[string]uint32

	// countdown carries the recent= skip state across MRU pages.
	countdown uint64
}

type handlerFn func(*Responder, *response)

type ctlProc struct {
	opcode  uint8
	auth    bool
	handler handlerFn
}

var controlCodes = []ctlProc{
	{control.OpUnspec, false, (*Responder).controlUnspec},
	{control.OpReadStat, false, (*Responder).readStatus},
	{control.OpReadVar, false, (*Responder).readVariables},
	{control.OpWriteVar, true, (*Responder).writeVariables},
	{control.OpReadClock, false, (*Responder).readClockStatus},
	{control.OpWriteClock, false, (*Responder).writeClockStatus},
	{control.OpConfigure, true, (*Responder).configure},
	{control.OpReadMRU, false, (*Responder).readMRUList},
	{control.OpReadOrdListA, true, (*Responder).readOrdList},
	{control.OpReqNonce, false, (*Responder).reqNonce},
}

// New builds a Responder from its collaborators.
func New(deps Deps) *Responder {
	return &Responder{
		transport:    deps.Transport,
		keys:         deps.Keys,
		peers:        deps.Peers,
		refclocks:    deps.Refclocks,
		system:       deps.System,
		mru:          deps.MRU,
		endpoints:    deps.Endpoints,
		restrictions: deps.Restrictions,
		configurer:   deps.Configurer,
		random:       deps.Random,
		clock:        deps.Clock,
		stats:        deps.Stats,
		quietUntil:   make(map[string]uint32),
	}
}

// SetSysVar replaces or appends a user-defined "name=value" system
// variable.
func (r *Responder) SetSysVar(text string, flags VarFlag) {
	r.extSysVar = setVar(r.extSysVar, text, flags)
}

// GetSysVar retrieves the value of a user-defined variable, or
// ("", false) if the variable has not been set.
func (r *Responder) GetSysVar(tag string) (string, bool) {
	return lookupExt(r.extSysVar, tag)
}

// Process handles one inbound control datagram. Framing errors are
// counted and dropped without a reply; protocol errors get a
// header-only error response.
func (r *Responder) Process(req *Request) {
	r.stats.IncRequests()

	b := req.Data
	head, err := control.DecodeHead(b)
	if err != nil && err != control.ErrCountTooLong {
		log.Debugf("invalid format in control packet from %s: %v", req.Src, err)
		switch err {
		case control.ErrTooShort:
			r.stats.IncTooShort()
		case control.ErrInputRME:
			if head.IsResponse() {
				r.stats.IncInputResp()
			}
			if head.HasMore() {
				r.stats.IncInputFrag()
			}
			if head.HasError() {
				r.stats.IncInputErr()
			}
		case control.ErrInputOffset:
			r.stats.IncBadOffset()
		case control.ErrBadVersion:
			r.stats.IncBadVersion()
		default:
			r.stats.IncBadPkts()
		}
		return
	}

	snap := r.system.Snapshot()
	ctx := &response{
		r:       r,
		req:     req,
		leap:    snap.Leap,
		version: uint8(head.GetVersion()),
		opcode:  head.GetOperation(),
		seq:     head.Sequence,
		associd: head.AssociationID,
	}

	reqCount := int(head.Count)
	reqData := len(b) - control.HeaderLen
	if reqData < reqCount || len(b)&0x3 != 0 {
		ctx.sendError(control.ErrBadFmt)
		r.stats.IncDataTooShort()
		return
	}

	// check for a trailing MAC: key id plus digest starting at the
	// next 8-octet boundary after the header and data
	properlen := (reqCount + control.HeaderLen + 7) &^ 7
	maclen := len(b) - properlen
	if len(b)&3 == 0 && maclen >= control.MinMACLen && maclen <= control.MaxMACLen {
		ctx.authenticate = true
		ctx.keyID = binary.BigEndian.Uint32(b[properlen : properlen+4])
		log.Debugf("recv_len %d, properlen %d, wants auth with keyid %08x, MAC length=%d",
			len(b), properlen, ctx.keyID, maclen)

		if !r.keys.IsTrusted(ctx.keyID) {
			log.Debugf("invalid keyid %08x", ctx.keyID)
		} else if r.keys.VerifyMAC(ctx.keyID, b[:properlen], b[properlen+4:]) {
			ctx.authOK = true
		} else {
			ctx.keyID = 0
			log.Debugf("authentication failed")
		}
	}

	ctx.reqData = b[control.HeaderLen : control.HeaderLen+reqCount]
	ctx.reqPos = 0

	for _, cc := range controlCodes {
		if cc.opcode == ctx.opcode {
			if cc.auth && (!ctx.authOK || ctx.keyID != r.AuthKeyID) {
				ctx.sendError(control.ErrPermission)
				return
			}
			cc.handler(r, ctx)
			return
		}
	}

	r.stats.IncBadOp()
	ctx.sendError(control.ErrBadOp)
}

// peerStatusWord builds the 16-bit status word for a peer.
func peerStatusWord(p *Peer) uint16 {
	status := p.Selection & 0x7
	if p.Configured {
		status |= control.PeerStatusConfig
	}
	if p.KeyID != 0 {
		status |= control.PeerStatusAuthEnable
	}
	if p.Authentic {
		status |= control.PeerStatusAuthentic
	}
	if p.Reach != 0 {
		status |= control.PeerStatusReach
	}
	if p.Broadcast {
		status |= control.PeerStatusBcast
	}
	return control.PeerStatusWord(status, p.NumEvents, p.LastEvent)
}

// clockStatusWord builds the status word for a refclock.
func clockStatusWord(cs *RefclockStat) uint16 {
	return control.PeerStatusWord(0, cs.LastEvent, cs.CurrentStatus)
}

// sysStatusWord builds the system status word from the snapshot.
func (r *Responder) sysStatusWord(snap *SystemSnapshot) uint16 {
	clockSource := uint8(control.ClockSourceUnspec)
	if p := r.peers.SysPeer(); p != nil {
		if p.IsRefclock && p.SSTClockType != control.ClockSourceUnspec {
			clockSource = p.SSTClockType
		} else {
			clockSource = control.ClockSourceNTP
		}
	}
	return control.SystemStatusWord(snap.Leap, clockSource, snap.NumEvents, snap.LastEvent)
}
