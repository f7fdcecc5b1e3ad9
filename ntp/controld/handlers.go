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
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/timekeep/timekeep/ntp/control"
)

// leapWritableMask bounds the bits a leap write may touch.
const leapWritableMask = 0x3

// controlUnspec responds to the unspecified op-code with the system or
// peer status and no data.
func (r *Responder) controlUnspec(ctx *response) {
	if ctx.associd != 0 {
		peer := r.peers.FindByAssoc(ctx.associd)
		if peer == nil {
			ctx.sendError(control.ErrBadAssoc)
			return
		}
		ctx.status = peerStatusWord(peer)
	} else {
		ctx.status = r.sysStatusWord(r.system.Snapshot())
	}
	ctx.flush(false)
}

// readStatus returns either the list of association ids with status
// words, or one peer's default variables.
func (r *Responder) readStatus(ctx *response) {
	log.Debugf("read_status: ID %d", ctx.associd)

	if ctx.associd != 0 {
		peer := r.peers.FindByAssoc(ctx.associd)
		if peer == nil {
			ctx.sendError(control.ErrBadAssoc)
			return
		}
		ctx.status = peerStatusWord(peer)
		if ctx.authOK {
			r.peers.ClearEvents(peer)
		}
		for _, code := range defPeerVar {
			ctx.putPeer(code, peer)
		}
		ctx.flush(false)
		return
	}

	ctx.status = r.sysStatusWord(r.system.Snapshot())
	var pair [4]byte
	for _, peer := range r.peers.Peers() {
		binary.BigEndian.PutUint16(pair[0:2], peer.AssocID)
		binary.BigEndian.PutUint16(pair[2:4], peerStatusWord(peer))
		ctx.putData(pair[:], true)
	}
	ctx.flush(false)
}

// readPeerVars is half of readVariables.
func (r *Responder) readPeerVars(ctx *response) {
	peer := r.peers.FindByAssoc(ctx.associd)
	if peer == nil {
		ctx.sendError(control.ErrBadAssoc)
		return
	}
	ctx.status = peerStatusWord(peer)
	if ctx.authOK {
		r.peers.ClearEvents(peer)
	}

	var wants [cpMaxCode + 1]bool
	gotVar := false
	for {
		v, _, err := ctx.nextItem(peerVar)
		if err == errItemTooLong {
			return
		}
		if err == errUnknownItem {
			ctx.sendError(control.ErrUnknownVar)
			return
		}
		if v == nil {
			break
		}
		wants[v.Code] = true
		gotVar = true
	}
	if gotVar {
		for code := uint16(1); code <= cpMaxCode; code++ {
			if wants[code] {
				ctx.putPeer(code, peer)
			}
		}
	} else {
		for _, code := range defPeerVar {
			ctx.putPeer(code, peer)
		}
	}
	ctx.flush(false)
}

// readSysVars is the other half of readVariables.
func (r *Responder) readSysVars(ctx *response) {
	snap := r.system.Snapshot()
	ctx.status = r.sysStatusWord(snap)
	if ctx.authOK {
		r.system.ClearEvents()
	}

	wants := make([]bool, csMaxCode+1+countVar(r.extSysVar))
	gotVar := false
	for {
		v, _, err := ctx.nextItem(sysVar)
		if err == errItemTooLong {
			return
		}
		if err == errUnknownItem {
			// not a built-in; rescan against the extension table
			ev, _, exterr := ctx.nextItem(r.extSysVar)
			if exterr == errItemTooLong {
				return
			}
			if exterr == errUnknownItem {
				ctx.sendError(control.ErrUnknownVar)
				return
			}
			if ev == nil {
				ctx.sendError(control.ErrBadValue)
				return
			}
			wants[int(ev.Code)+csMaxCode+1] = true
			gotVar = true
			continue
		}
		if v == nil {
			break
		}
		wants[v.Code] = true
		gotVar = true
	}

	if gotVar {
		for code := uint16(1); code <= csMaxCode; code++ {
			if wants[code] {
				ctx.putSys(code, snap)
			}
		}
		for i := 0; i+csMaxCode+1 < len(wants); i++ {
			if wants[i+csMaxCode+1] {
				ctx.putData([]byte(r.extSysVar[i].Text), false)
			}
		}
	} else {
		for _, code := range defSysVar {
			ctx.putSys(code, snap)
		}
		for _, kv := range r.extSysVar {
			if kv.Flags&FlagEOV != 0 {
				break
			}
			if kv.Flags&FlagDef != 0 {
				ctx.putData([]byte(kv.Text), false)
			}
		}
	}
	ctx.flush(false)
}

// readVariables returns the variables the caller asks for.
func (r *Responder) readVariables(ctx *response) {
	if ctx.associd != 0 {
		r.readPeerVars(ctx)
	} else {
		r.readSysVars(ctx)
	}
}

// writeVariables writes into variables. Only the leap bits and
// extension variables are syntactically writable, and the leap write
// itself has no effect.
func (r *Responder) writeVariables(ctx *response) {
	// writing into a peer is not a thing
	if ctx.associd != 0 {
		ctx.sendError(control.ErrPermission)
		return
	}

	ctx.status = r.sysStatusWord(r.system.Snapshot())

	for {
		extVar := false
		v, value, err := ctx.nextItem(sysVar)
		if err == errItemTooLong {
			return
		}
		if err == errUnknownItem {
			ev, evalue, exterr := ctx.nextItem(r.extSysVar)
			if exterr == errItemTooLong {
				return
			}
			if exterr == errUnknownItem {
				ctx.sendError(control.ErrUnknownVar)
				return
			}
			if ev == nil {
				break
			}
			v, value = ev, evalue
			extVar = true
		}
		if v == nil {
			break
		}
		if v.Flags&FlagRW == 0 {
			ctx.sendError(control.ErrPermission)
			return
		}
		if !extVar {
			val, perr := strconv.ParseInt(value, 10, 64)
			if value == "" || perr != nil {
				ctx.sendError(control.ErrBadFmt)
				return
			}
			if val&^leapWritableMask != 0 {
				ctx.sendError(control.ErrBadValue)
				return
			}
			// leap accepted but applied nowhere; nothing to do
		} else {
			r.SetSysVar(varName(v.Text)+"="+value, v.Flags)
		}
	}
	ctx.flush(false)
}

// readClockStatus returns refclock driver status.
func (r *Responder) readClockStatus(ctx *response) {
	var peer *Peer
	if ctx.associd != 0 {
		peer = r.peers.FindByAssoc(ctx.associd)
	} else {
		// find a clock: the system peer if it is one, else the
		// first refclock peer
		if sys := r.peers.SysPeer(); sys != nil && sys.IsRefclock {
			peer = sys
		} else {
			for _, p := range r.peers.Peers() {
				if p.IsRefclock {
					peer = p
					break
				}
			}
		}
	}
	if peer == nil || !peer.IsRefclock {
		ctx.sendError(control.ErrBadAssoc)
		return
	}

	cs := r.refclocks.Status(peer)
	if cs == nil {
		ctx.sendError(control.ErrBadAssoc)
		return
	}
	ctx.status = clockStatusWord(cs)

	wants := make([]bool, ccMaxCode+1+countVar(cs.KV))
	gotVar := false
	for {
		v, _, err := ctx.nextItem(clockVar)
		if err == errItemTooLong {
			return
		}
		if err == errUnknownItem {
			ev, _, exterr := ctx.nextItem(cs.KV)
			if exterr == errItemTooLong {
				return
			}
			if exterr == errUnknownItem {
				ctx.sendError(control.ErrUnknownVar)
				return
			}
			if ev == nil {
				ctx.sendError(control.ErrBadValue)
				return
			}
			wants[int(ev.Code)+ccMaxCode+1] = true
			gotVar = true
			continue
		}
		if v == nil {
			break
		}
		wants[v.Code] = true
		gotVar = true
	}

	if gotVar {
		for code := uint16(1); code <= ccMaxCode; code++ {
			if wants[code] {
				ctx.putClock(code, cs, true)
			}
		}
		for i := 0; i+ccMaxCode+1 < len(wants); i++ {
			if wants[i+ccMaxCode+1] {
				ctx.putData([]byte(cs.KV[i].Text), false)
			}
		}
	} else {
		for _, code := range defClockVar {
			ctx.putClock(code, cs, false)
		}
		for _, kv := range cs.KV {
			if kv.Flags&FlagEOV != 0 {
				break
			}
			if kv.Flags&FlagDef != 0 {
				ctx.putData([]byte(kv.Text), false)
			}
		}
	}
	ctx.flush(false)
}

// writeClockStatus - we don't do this.
func (r *Responder) writeClockStatus(ctx *response) {
	ctx.sendError(control.ErrPermission)
}

// configure processes runtime reconfiguration requests.
func (r *Responder) configure(ctx *response) {
	// changes to an existing association are not implemented
	if ctx.associd != 0 {
		ctx.sendError(control.ErrBadValue)
		return
	}

	if ctx.req.RestrictMask&RestrictNoModify != 0 {
		msg := "runtime configuration prohibited by restrict ... nomodify"
		ctx.putData([]byte(msg), false)
		ctx.flush(false)
		log.Warningf("runtime config from %s rejected due to nomodify restriction", ctx.req.Src)
		r.system.BumpRestricted()
		return
	}

	data := ctx.reqData[ctx.reqPos:]
	if len(data) > remoteConfigBufSize-2 {
		msg := "runtime configuration failed: request too long"
		ctx.putData([]byte(msg), false)
		ctx.flush(false)
		log.Warningf("runtime config from %s rejected: request too long", ctx.req.Src)
		return
	}

	text := string(data)
	if len(text) > 0 && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	log.Infof("%s config: %s", ctx.req.Src, strings.TrimSuffix(text, "\n"))

	_, errCount, errText := r.configurer.ConfigureRemotely(ctx.req.Src, text)
	if errCount == 0 {
		errText = "Config Succeeded"
	}
	ctx.putData([]byte(errText), false)
	ctx.flush(false)

	if errCount > 0 {
		log.Warningf("%d error in %s config", errCount, ctx.req.Src)
	}
}

// reqNonce issues the opaque token a client must echo to read the MRU
// list.
func (r *Responder) reqNonce(ctx *response) {
	ctx.putUnqStr("nonce", r.generateNonce(ctx.req))
	ctx.flush(false)
}
