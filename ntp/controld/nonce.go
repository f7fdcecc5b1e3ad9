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
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/timekeep/timekeep/ntp/control"
)

// nonceTimeout bounds how long an issued nonce validates, in seconds.
const nonceTimeout = 16

// saltLifetime is how long the nonce salt is used before rotation,
// in seconds.
const saltLifetime = 3600

// refreshSalt redraws the 128-bit salt when it is zero-initialized or
// older than saltLifetime.
func (r *Responder) refreshSalt() {
	now := r.clock.Now().Uint()
	for r.salt[0] == 0 || now-r.saltUpdated >= saltLifetime {
		r.salt[0] = r.random.Uint32()
		r.salt[1] = r.random.Uint32()
		r.salt[2] = r.random.Uint32()
		r.salt[3] = r.random.Uint32()
		r.saltUpdated = now
	}
}

// deriveNonce computes the client-address-specific hash bound to a
// receive timestamp: the low 32 bits of
// MD5(salt || ts_i || ts_f || addr || port || salt).
func (r *Responder) deriveNonce(addr netip.AddrPort, tsI, tsF uint32) uint32 {
	r.refreshSalt()

	h := md5.New()
	var w [4]byte
	for _, s := range r.salt {
		binary.BigEndian.PutUint32(w[:], s)
		h.Write(w[:])
	}
	binary.BigEndian.PutUint32(w[:], tsI)
	h.Write(w[:])
	binary.BigEndian.PutUint32(w[:], tsF)
	h.Write(w[:])
	ip := addr.Addr()
	if ip.Is4() || ip.Is4In6() {
		b := ip.Unmap().As4()
		h.Write(b[:])
	} else {
		b := ip.As16()
		h.Write(b[:])
	}
	binary.BigEndian.PutUint16(w[:2], addr.Port())
	h.Write(w[:2])
	for _, s := range r.salt {
		binary.BigEndian.PutUint32(w[:], s)
		h.Write(w[:])
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint32(sum[:4])
}

// generateNonce builds the opaque 24-hex-digit token for the request's
// source, bound to its receive timestamp.
func (r *Responder) generateNonce(req *Request) string {
	derived := r.deriveNonce(req.Src, req.Received.Uint(), req.Received.Frac())
	return fmt.Sprintf("%08x%08x%08x", req.Received.Uint(), req.Received.Frac(), derived)
}

// validateNonce recomputes the hash under the current salt and checks
// the embedded timestamp is recent enough.
func (r *Responder) validateNonce(nonce string, req *Request) bool {
	var tsI, tsF, supposed uint32
	if n, err := fmt.Sscanf(nonce, "%08x%08x%08x", &tsI, &tsF, &supposed); n != 3 || err != nil {
		return false
	}
	derived := r.deriveNonce(req.Src, tsI, tsF)
	delta := r.clock.Now().Sub(control.NewLFP(tsI, tsF))
	return supposed == derived && delta.Uint() < nonceTimeout
}
