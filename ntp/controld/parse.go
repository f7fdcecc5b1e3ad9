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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/timekeep/timekeep/ntp/control"
)

// maxValueLen caps a single value token. Anything longer is the
// signature of the old ntpdx overflow probe.
const maxValueLen = 128

// Scanner outcomes beyond a plain match.
var (
	errUnknownItem = errors.New("name matches no descriptor")
	errItemTooLong = errors.New("value token too long")
)

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\v' || c == '\f'
}

// nextItem scans the next "name[=value]" item of the request data area
// against a variable table. It returns nil when the input is
// exhausted, errUnknownItem (cursor unmoved) when no descriptor's name
// prefixes the remaining input, and errItemTooLong after signalling
// BADFMT for an oversized value.
func (ctx *response) nextItem(table []Var) (*Var, string, error) {
	// delete leading commas and white space
	for ctx.reqPos < len(ctx.reqData) &&
		(ctx.reqData[ctx.reqPos] == ',' || isSpace(ctx.reqData[ctx.reqPos])) {
		ctx.reqPos++
	}
	if ctx.reqPos >= len(ctx.reqData) {
		return nil, "", nil
	}

	for i := range table {
		v := &table[i]
		if v.Flags&(FlagPadding|FlagEOV) != 0 {
			continue
		}
		cp := ctx.reqPos
		t := v.Text
		j := 0
		for j < len(t) && t[j] != '=' && cp < len(ctx.reqData) && ctx.reqData[cp] == t[j] {
			cp++
			j++
		}
		if j < len(t) && t[j] != '=' {
			continue
		}
		// name matched; see what follows
		for cp < len(ctx.reqData) && isSpace(ctx.reqData[cp]) {
			cp++
		}
		if cp == len(ctx.reqData) || ctx.reqData[cp] == ',' {
			if cp < len(ctx.reqData) {
				cp++
			}
			ctx.reqPos = cp
			return v, "", nil
		}
		if ctx.reqData[cp] == '=' {
			cp++
			for cp < len(ctx.reqData) && isSpace(ctx.reqData[cp]) {
				cp++
			}
			start := cp
			for cp < len(ctx.reqData) && ctx.reqData[cp] != ',' {
				cp++
				if cp-start > maxValueLen {
					ctx.sendError(control.ErrBadFmt)
					ctx.r.stats.IncBadPkts()
					ctx.r.warnSuspicious(ctx.req.Src)
					return nil, "", errItemTooLong
				}
			}
			val := string(ctx.reqData[start:cp])
			if cp < len(ctx.reqData) {
				cp++
			}
			// trim trailing whitespace
			for len(val) > 0 && isSpace(val[len(val)-1]) {
				val = val[:len(val)-1]
			}
			ctx.reqPos = cp
			return v, val, nil
		}
		// partial name match followed by something else; try the
		// next descriptor from the original position
	}
	return nil, "", errUnknownItem
}

// warnSuspicious logs the possible-exploit warning at most once every
// 300 seconds per source address.
func (r *Responder) warnSuspicious(src interface{ String() string }) {
	now := r.clock.Now().Uint()
	key := src.String()
	if until, ok := r.quietUntil[key]; ok && now < until {
		return
	}
	r.quietUntil[key] = now + suspiciousLogInterval
	log.Warningf("Possible 'ntpdx' exploit from %s (possibly spoofed)", key)
}
