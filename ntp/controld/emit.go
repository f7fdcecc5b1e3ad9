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
	"time"

	"github.com/timekeep/timekeep/ntp/control"
)

// invalidAddrPort is the zero AddrPort, used when only a raw 32-bit
// address is on hand.
var invalidAddrPort netip.AddrPort

// Typed tag=value emitters. Each appends a single token to the
// fragment writer and marks the payload as text.

// putStr writes tag="data", or the bare tag if data is empty. The
// value must not contain a NUL.
func (ctx *response) putStr(tag, data string) {
	if len(data) == 0 {
		ctx.putData([]byte(tag), false)
		return
	}
	ctx.putData([]byte(tag+`="`+data+`"`), false)
}

// putUnqStr writes tag=data unquoted; data must contain no comma or
// whitespace.
func (ctx *response) putUnqStr(tag, data string) {
	if len(data) == 0 {
		ctx.putData([]byte(tag), false)
		return
	}
	ctx.putData([]byte(tag+"="+data), false)
}

// putDblF writes a signed double, fixed or general form at the given
// precision. precision < 0 lets the general form pick.
func (ctx *response) putDblF(tag string, useF bool, precision int, d float64) {
	verb := byte('g')
	if useF {
		verb = 'f'
	}
	ctx.putData([]byte(tag+"="+strconv.FormatFloat(d, verb, precision, 64)), false)
}

// putDbl is the common three-decimal fixed form.
func (ctx *response) putDbl(tag string, d float64) {
	ctx.putDblF(tag, true, 3, d)
}

// putDbl6 is the six-decimal fixed form used for clock offsets.
func (ctx *response) putDbl6(tag string, d float64) {
	ctx.putDblF(tag, true, 6, d)
}

func (ctx *response) putUint(tag string, v uint64) {
	ctx.putData([]byte(tag+"="+strconv.FormatUint(v, 10)), false)
}

func (ctx *response) putInt(tag string, v int64) {
	ctx.putData([]byte(tag+"="+strconv.FormatInt(v, 10)), false)
}

func (ctx *response) putHex(tag string, v uint64) {
	ctx.putData([]byte(tag+"=0x"+strconv.FormatUint(v, 16)), false)
}

// putTS writes an l_fp timestamp in hex.
func (ctx *response) putTS(tag string, ts control.LFP) {
	ctx.putData([]byte(tag+"="+ts.String()), false)
}

// putFS writes a decoded filestamp (seconds since 1900) as
// YYYYMMDDHHMM in UTC.
func (ctx *response) putFS(tag string, fs uint32) {
	t := time.Unix(int64(fs)-control.SecondsToUnix, 0).UTC()
	ctx.putData([]byte(tag+"="+t.Format("200601021504")), false)
}

// putAdr writes an IP address, dotted-quad or bracketed v6 with port
// when ap is valid, else the bare v4 address addr32.
func (ctx *response) putAdr(tag string, addr32 uint32, ap netip.AddrPort) {
	var s string
	if ap.IsValid() {
		s = sockPortToA(ap)
	} else {
		s = v4ToA(addr32)
	}
	ctx.putData([]byte(tag+"="+s), false)
}

// putAddrOnly writes an address without port.
func (ctx *response) putAddrOnly(tag string, a netip.Addr) {
	ctx.putData([]byte(tag+"="+a.String()), false)
}

// putRefID writes a refid as printable text, replacing non-printable
// bytes with '.' and truncating at the first NUL.
func (ctx *response) putRefID(tag string, refid uint32) {
	b := []byte{byte(refid >> 24), byte(refid >> 16), byte(refid >> 8), byte(refid)}
	out := make([]byte, 0, 4)
	for _, c := range b {
		if c == 0 {
			break
		}
		if c >= 0x20 && c < 0x7f {
			out = append(out, c)
		} else {
			out = append(out, '.')
		}
	}
	ctx.putData([]byte(tag+"="+string(out)), false)
}

// putArray writes the eight element filter ring, newest first
// beginning with the slot before start and wrapping modulo 8, each
// scaled to milliseconds with two decimals.
func (ctx *response) putArray(tag string, arr [8]float64, start int) {
	buf := tag + "="
	i := start
	for {
		if i == 0 {
			i = len(arr)
		}
		i--
		buf += fmt.Sprintf(" %.2f", arr[i]*1e3)
		if i == start {
			break
		}
	}
	ctx.putData([]byte(buf), false)
}

// sockPortToA renders address and port, bracketing IPv6.
func sockPortToA(ap netip.AddrPort) string {
	return ap.String()
}

// v4ToA renders a bare 32-bit IPv4 address.
func v4ToA(addr32 uint32) string {
	return netip.AddrFrom4([4]byte{
		byte(addr32 >> 24), byte(addr32 >> 16), byte(addr32 >> 8), byte(addr32),
	}).String()
}
