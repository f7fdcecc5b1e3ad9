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
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timekeep/timekeep/ntp/control"
)

func TestNonceIssueAndValidate(t *testing.T) {
	h := newHarness()
	req := &Request{Src: testSrc, Received: h.clock.Now()}

	nonce := h.r.generateNonce(req)
	require.Len(t, nonce, 24)
	require.True(t, h.r.validateNonce(nonce, req))
}

func TestNonceExpires(t *testing.T) {
	h := newHarness()
	req := &Request{Src: testSrc, Received: h.clock.Now()}
	nonce := h.r.generateNonce(req)

	h.clock.advance(nonceTimeout - 1)
	require.True(t, h.r.validateNonce(nonce, req))

	h.clock.advance(2)
	require.False(t, h.r.validateNonce(nonce, req))
}

func TestNonceBoundToClient(t *testing.T) {
	h := newHarness()
	req := &Request{Src: testSrc, Received: h.clock.Now()}
	nonce := h.r.generateNonce(req)

	other := &Request{
		Src:      netip.MustParseAddrPort("203.0.113.6:41234"),
		Received: req.Received,
	}
	require.False(t, h.r.validateNonce(nonce, other))

	samehost := &Request{
		Src:      netip.MustParseAddrPort("203.0.113.5:41235"),
		Received: req.Received,
	}
	require.False(t, h.r.validateNonce(nonce, samehost))
}

func TestNonceTamperFails(t *testing.T) {
	h := newHarness()
	req := &Request{Src: testSrc, Received: h.clock.Now()}
	nonce := h.r.generateNonce(req)

	tampered := []byte(nonce)
	if tampered[23] == 'f' {
		tampered[23] = '0'
	} else {
		tampered[23] = 'f'
	}
	require.False(t, h.r.validateNonce(string(tampered), req))
	require.False(t, h.r.validateNonce("zz", req))
	require.False(t, h.r.validateNonce("", req))
}

func TestSaltRotation(t *testing.T) {
	h := newHarness()
	h.random.vals = []uint32{1, 2, 3, 4, 5, 6, 7, 8}

	req := &Request{Src: testSrc, Received: h.clock.Now()}
	nonce := h.r.generateNonce(req)
	salt := h.r.salt

	// within the hour the salt stays put and the nonce validates
	h.clock.advance(10)
	require.Equal(t, salt, h.r.salt)
	require.True(t, h.r.validateNonce(nonce, req))

	// past an hour the salt rotates, invalidating older nonces
	h.clock.advance(saltLifetime)
	h.r.refreshSalt()
	require.NotEqual(t, salt, h.r.salt)
	require.False(t, h.r.validateNonce(nonce, req))
}

func TestReqNonceHandler(t *testing.T) {
	h := newHarness()
	h.process(buildRequest(control.OpReqNonce, 0, nil))

	m := h.lastMsg()
	require.False(t, m.HasError())
	kv, err := control.NormalizeData(m.Data)
	require.NoError(t, err)
	require.Len(t, kv["nonce"], 24)
}
