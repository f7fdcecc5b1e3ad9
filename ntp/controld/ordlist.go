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
	"strings"

	"github.com/timekeep/timekeep/ntp/control"
)

// ifstatsFields is the tag count of one ifstats row.
const ifstatsFields = 12

// reslistFields is the tag count of one reslist row.
const reslistFields = 4

// readOrdList serves READ_ORDLIST_A. The request data is empty or
// "ifstats" for local addresses and their counters, or
// "addr_restrictions" for the IPv4 then IPv6 access control lists.
// Anything else is UNKNOWNVAR. The opcode was once ifstats-only and
// was later generalized to ordered lists that require authentication.
func (r *Responder) readOrdList(ctx *response) {
	sel := string(ctx.reqData)
	switch sel {
	case "", "ifstats":
		r.readIfStats(ctx)
	case "addr_restrictions":
		r.readAddrRestrictions(ctx)
	default:
		ctx.sendError(control.ErrUnknownVar)
	}
}

// readIfStats sends statistics for each local address.
func (r *Responder) readIfStats(ctx *response) {
	for _, la := range r.endpoints.List() {
		r.sendIfStatsEntry(ctx, la, uint(la.Index))
	}
	ctx.flush(false)
}

// sendIfStatsEntry emits one endpoint's row, fields in random order
// for the same reason MRU rows are randomized.
func (r *Responder) sendIfStatsEntry(ctx *response, la *Endpoint, ifnum uint) {
	var sent [ifstatsFields]bool
	remaining := len(sent)
	var noise uint32
	noisebits := 0
	for remaining > 0 {
		if noisebits < 4 {
			noise = r.random.Uint32()
			noisebits = 31
		}
		which := int(noise&0xf) % len(sent)
		noise >>= 4
		noisebits -= 4

		for sent[which] {
			which = (which + 1) % len(sent)
		}

		switch which {
		case 0:
			ctx.putUnqStr(fmt.Sprintf("addr.%d", ifnum), sockPortToA(la.Addr))
		case 1:
			pch := ""
			if la.BcastOpen {
				pch = sockPortToA(la.Bcast)
			}
			ctx.putUnqStr(fmt.Sprintf("bcast.%d", ifnum), pch)
		case 2:
			en := int64(1)
			if la.IgnorePackets {
				en = 0
			}
			ctx.putInt(fmt.Sprintf("en.%d", ifnum), en)
		case 3:
			ctx.putStr(fmt.Sprintf("name.%d", ifnum), la.Name)
		case 4:
			ctx.putHex(fmt.Sprintf("flags.%d", ifnum), uint64(la.Flags))
		case 5:
			ctx.putInt(fmt.Sprintf("tl.%d", ifnum), int64(la.LastTTL))
		case 6:
			ctx.putInt(fmt.Sprintf("mc.%d", ifnum), la.MCastCount)
		case 7:
			ctx.putInt(fmt.Sprintf("rx.%d", ifnum), la.Received)
		case 8:
			ctx.putInt(fmt.Sprintf("tx.%d", ifnum), la.Sent)
		case 9:
			ctx.putInt(fmt.Sprintf("txerr.%d", ifnum), la.NotSent)
		case 10:
			ctx.putUint(fmt.Sprintf("pc.%d", ifnum), la.PeerCount)
		case 11:
			ctx.putUint(fmt.Sprintf("up.%d", ifnum), la.Uptime)
		}
		sent[which] = true
		remaining--
	}
	r.sendRandomTagValue(ctx, int(ifnum))
}

// readAddrRestrictions returns the IPv4 and IPv6 access control lists.
func (r *Responder) readAddrRestrictions(ctx *response) {
	idx := uint(0)
	for _, res := range r.restrictions.V4() {
		r.sendRestrictEntry(ctx, res, idx)
		idx++
	}
	for _, res := range r.restrictions.V6() {
		r.sendRestrictEntry(ctx, res, idx)
		idx++
	}
	ctx.flush(false)
}

// sendRestrictEntry emits one restrict row, fields in random order.
func (r *Responder) sendRestrictEntry(ctx *response, res *RestrictEntry, idx uint) {
	var sent [reslistFields]bool
	remaining := len(sent)
	var noise uint32
	noisebits := 0
	for remaining > 0 {
		if noisebits < 2 {
			noise = r.random.Uint32()
			noisebits = 31
		}
		which := int(noise&0x3) % len(sent)
		noise >>= 2
		noisebits -= 2

		for sent[which] {
			which = (which + 1) % len(sent)
		}

		switch which {
		case 0:
			ctx.putUnqStr(fmt.Sprintf("addr.%d", idx), res.Addr.String())
		case 1:
			ctx.putUnqStr(fmt.Sprintf("mask.%d", idx), res.Mask.String())
		case 2:
			ctx.putUint(fmt.Sprintf("hits.%d", idx), res.Hits)
		case 3:
			match := resMatchFlags(res.MatchFlags)
			access := resAccessFlags(res.Flags)
			pch := access
			if match != "" {
				pch = match + " " + access
			}
			ctx.putUnqStr(fmt.Sprintf("flags.%d", idx), pch)
		}
		sent[which] = true
		remaining--
	}
	r.sendRandomTagValue(ctx, int(idx))
}

// restrictBitNames maps access-control bits to their config keywords.
var restrictBitNames = []struct {
	bit  uint16
	name string
}{
	{0x0001, "ignore"},
	{0x0002, "noserve"},
	{0x0004, "notrust"},
	{RestrictNoQuery, "noquery"},
	{RestrictNoModify, "nomodify"},
	{0x0020, "nopeer"},
	{RestrictLimited, "limited"},
	{0x0080, "version"},
	{0x0100, "kod"},
	{0x0200, "flake"},
	{0x0400, "mssntp"},
	{RestrictNoMRUList, "nomrulist"},
}

// resAccessFlags renders the access flag bits as keywords.
func resAccessFlags(flags uint16) string {
	var names []string
	for _, b := range restrictBitNames {
		if flags&b.bit != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, " ")
}

// restrictMatchNames maps match-policy bits to keywords.
var restrictMatchNames = []struct {
	bit  uint16
	name string
}{
	{0x0001, "ntpport"},
	{0x0002, "interface"},
	{0x0004, "source"},
}

// resMatchFlags renders the match flag bits as keywords.
func resMatchFlags(mflags uint16) string {
	var names []string
	for _, b := range restrictMatchNames {
		if mflags&b.bit != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, " ")
}
