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
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/timekeep/timekeep/ntp/control"
)

// Paging bounds for one READ_MRU request.
const (
	mruRowLimit   = 256
	mruFragsLimit = 128
)

// mruPriors is how many resync anchors a request may carry.
const mruPriors = 16

// mruParams is the decoded parameter set of one READ_MRU request.
type mruParams struct {
	nonce     string
	frags     uint16
	limit     uint32
	mincount  int32
	resall    uint16
	resany    uint16
	maxlstint uint32
	recent    uint32
	laddr     *Endpoint
	haveLaddr bool

	last   [mruPriors]control.LFP
	addr   [mruPriors]netip.AddrPort
	priors int
}

// mruInParms builds the parameter descriptor table for one request.
func mruInParms() []Var {
	names := []string{
		"nonce", "frags", "limit", "mincount", "resall", "resany",
		"maxlstint", "laddr", "recent",
	}
	for i := 0; i < mruPriors; i++ {
		names = append(names, fmt.Sprintf("last.%d", i), fmt.Sprintf("addr.%d", i))
	}
	table := make([]Var, 0, len(names)+1)
	for i, n := range names {
		table = append(table, Var{Code: uint16(i), Text: n})
	}
	return append(table, Var{Flags: FlagEOV})
}

// parseMRUParams decodes the request data area. A false return means
// the request must be dropped silently: either no nonce arrived or a
// parameter failed to parse.
func (r *Responder) parseMRUParams(ctx *response, p *mruParams) bool {
	table := mruInParms()
	for {
		v, val, err := ctx.nextItem(table)
		if err == errItemTooLong {
			p.nonce = ""
			break
		}
		if err != nil || v == nil {
			// unknown trailing keys are ignored, not errors
			break
		}
		ok := true
		switch {
		case v.Text == "nonce":
			p.nonce = val
		case v.Text == "frags":
			u, perr := strconv.ParseUint(val, 10, 16)
			p.frags, ok = uint16(u), perr == nil
		case v.Text == "limit":
			u, perr := strconv.ParseUint(val, 10, 32)
			p.limit, ok = uint32(u), perr == nil
		case v.Text == "mincount":
			i, perr := strconv.ParseInt(val, 10, 32)
			if perr != nil {
				ok = false
			} else if i < 0 {
				p.mincount = 0
			} else {
				p.mincount = int32(i)
			}
		case v.Text == "resall":
			u, perr := strconv.ParseUint(strings.TrimPrefix(val, "0x"), 16, 16)
			p.resall, ok = uint16(u), perr == nil
		case v.Text == "resany":
			u, perr := strconv.ParseUint(strings.TrimPrefix(val, "0x"), 16, 16)
			p.resany, ok = uint16(u), perr == nil
		case v.Text == "maxlstint":
			u, perr := strconv.ParseUint(val, 10, 32)
			p.maxlstint, ok = uint32(u), perr == nil
		case v.Text == "laddr":
			a, perr := netip.ParseAddr(val)
			if perr != nil {
				ok = false
			} else {
				p.laddr = r.endpoints.Find(a)
				p.haveLaddr = true
			}
		case v.Text == "recent":
			u, perr := strconv.ParseUint(val, 10, 32)
			p.recent, ok = uint32(u), perr == nil
		case strings.HasPrefix(v.Text, "last."):
			si, _ := strconv.Atoi(v.Text[len("last."):])
			ts, perr := control.ParseLFP(val)
			if perr != nil {
				ok = false
				break
			}
			p.last[si] = ts
			if p.addr[si].IsValid() && si == p.priors {
				p.priors++
			}
		case strings.HasPrefix(v.Text, "addr."):
			si, _ := strconv.Atoi(v.Text[len("addr."):])
			a, perr := netip.ParseAddrPort(val)
			if perr != nil {
				ok = false
				break
			}
			p.addr[si] = a
			if p.last[si] != 0 && si == p.priors {
				p.priors++
			}
		}
		if !ok {
			log.Debugf("read_mru_list: invalid param for '%s': '%s' (bailing)", v.Text, val)
			p.nonce = ""
			break
		}
	}
	return p.nonce != ""
}

// readMRUList pages through the MRU table. Entries are retrieved
// oldest first, bounded per request by frags= and limit=, so the
// client can assemble a close approximation of the list while it keeps
// changing underneath. The client supplies its newest-known
// (last.N, addr.N) pairs as resync anchors; if none still match, the
// request fails with UNKNOWNVAR and the client backs up to older
// anchors.
func (r *Responder) readMRUList(ctx *response) {
	if ctx.req.RestrictMask&RestrictNoMRUList != 0 {
		log.Warningf("mrulist from %s rejected due to nomrulist restriction", ctx.req.Src)
		r.system.BumpRestricted()
		ctx.sendError(control.ErrPermission)
		return
	}

	var p mruParams
	if !r.parseMRUParams(ctx, &p) {
		// no responses until a nonce arrives
		return
	}
	if !r.validateNonce(p.nonce, ctx.req) {
		return
	}

	if (p.frags == 0 && !(p.limit > 0 && p.limit <= mruRowLimit)) ||
		p.frags > mruFragsLimit {
		ctx.sendError(control.ErrBadValue)
		return
	}

	// if either frags or limit is not given, use the max
	if p.frags != 0 && p.limit == 0 {
		p.limit = ^uint32(0)
	} else if p.limit != 0 && p.frags == 0 {
		p.frags = mruFragsLimit
	}

	// find the starting point if one was provided
	var mon *MRUEntry
	for i := 0; i < p.priors; i++ {
		if e := r.mru.Lookup(p.addr[i]); e != nil && e.Last == p.last[i] {
			mon = e
			break
		}
	}

	if p.priors > 0 {
		if mon == nil {
			// tell the client to try again with older entries
			ctx.sendError(control.ErrUnknownVar)
			return
		}
		// confirm the prior entry used as starting point
		ctx.putTS("last.older", mon.Last)
		ctx.putUnqStr("addr.older", sockPortToA(mon.Addr))

		// move on to the first entry the client doesn't have,
		// except with limit=1, which returns the anchor itself
		if p.limit > 1 {
			mon = r.mru.Newer(mon)
		}
	} else {
		// start with the oldest
		mon = r.mru.Oldest()
		r.countdown = uint64(r.mru.Len())
	}

	// send up to limit= entries in up to frags= datagrams
	now := r.clock.Now()
	ctx.putUnqStr("nonce", r.generateNonce(ctx.req))
	var prior *MRUEntry
	count := uint32(0)
	for ; mon != nil && ctx.frags+1 < int(p.frags) && count < p.limit; mon = r.mru.Newer(mon) {
		if mon.Count < int64(p.mincount) {
			continue
		}
		if p.resall != 0 && p.resall != p.resall&mon.Restrict {
			continue
		}
		if p.resany != 0 && p.resany&mon.Restrict == 0 {
			continue
		}
		if p.maxlstint > 0 && now.Uint()-mon.Last.Uint() > p.maxlstint {
			continue
		}
		if p.haveLaddr && mon.Local != p.laddr {
			continue
		}
		if p.recent != 0 && r.countdown > uint64(p.recent) {
			r.countdown--
			continue
		}
		if p.recent != 0 {
			r.countdown--
		}
		r.sendMRUEntry(ctx, mon, int(count))
		if count == 0 {
			r.sendRandomTagValue(ctx, 0)
		}
		count++
		prior = mon
	}

	// a batch that drains the list says so explicitly with a now=
	// timestamp, plus confirmation of the last entry returned
	if mon == nil {
		if count > 1 {
			r.sendRandomTagValue(ctx, int(count-1))
		}
		ctx.putTS("now", now)
		if prior != nil {
			ctx.putTS("last.newest", prior.Last)
		}
	}
	ctx.flush(false)
}

// sendMRUEntry emits the six tokens of one MRU row. To keep clients
// honest about not depending on the order of values, and thereby avoid
// being locked into ugly workarounds as new fields are added, the
// order is random.
func (r *Responder) sendMRUEntry(ctx *response, mon *MRUEntry, count int) {
	var sent [6]bool
	remaining := len(sent)
	noise := r.random.Uint32()
	for remaining > 0 {
		which := int(noise&7) % len(sent)
		noise >>= 3
		for sent[which] {
			which = (which + 1) % len(sent)
		}

		switch which {
		case 0:
			ctx.putUnqStr(fmt.Sprintf("addr.%d", count), sockPortToA(mon.Addr))
		case 1:
			ctx.putTS(fmt.Sprintf("last.%d", count), mon.Last)
		case 2:
			ctx.putTS(fmt.Sprintf("first.%d", count), mon.First)
		case 3:
			ctx.putInt(fmt.Sprintf("ct.%d", count), mon.Count)
		case 4:
			ctx.putUint(fmt.Sprintf("mv.%d", count), uint64(mon.VnMode))
		case 5:
			ctx.putHex(fmt.Sprintf("rs.%d", count), uint64(mon.Restrict))
		}
		sent[which] = true
		remaining--
	}
}

// sendRandomTagValue emits a three random lowercase letter tag with
// the correct .N index and a random integer value. An MRU page carries
// one after its first row, and one after its last row only when the
// walk reached the newest entry; every ifstats and reslist row carries
// one. They force clients to ignore unrecognized tags. Three characters because no subscripted
// tag has that length, so collision needs no test.
func (r *Responder) sendRandomTagValue(ctx *response, idx int) {
	noise := r.random.Uint32()
	tag := []byte{
		'a' + byte(noise%26),
		0, 0,
	}
	noise >>= 5
	tag[1] = 'a' + byte(noise%26)
	noise >>= 5
	tag[2] = 'a' + byte(noise%26)
	noise >>= 5
	ctx.putUint(fmt.Sprintf("%s.%d", tag, idx), uint64(noise))
}
