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
)

// MemPeerStore is a PeerStore over an in-memory slice, for daemons
// whose peer list is owned elsewhere and mirrored in.
type MemPeerStore struct {
	List   []*Peer
	SysIdx int // index of the system peer, -1 for none
}

// FindByAssoc returns the peer with the given association id.
func (m *MemPeerStore) FindByAssoc(id uint16) *Peer {
	for _, p := range m.List {
		if p.AssocID == id {
			return p
		}
	}
	return nil
}

// Peers returns the peer list in order.
func (m *MemPeerStore) Peers() []*Peer {
	return m.List
}

// SysPeer returns the current system peer, nil for none.
func (m *MemPeerStore) SysPeer() *Peer {
	if m.SysIdx < 0 || m.SysIdx >= len(m.List) {
		return nil
	}
	return m.List[m.SysIdx]
}

// ClearEvents resets the peer's event counter.
func (m *MemPeerStore) ClearEvents(p *Peer) {
	p.NumEvents = 0
}

// MemRefclocks maps association ids to driver status blocks.
type MemRefclocks struct {
	Stats map[uint16]*RefclockStat
}

// Status returns the status block for a refclock peer.
func (m *MemRefclocks) Status(p *Peer) *RefclockStat {
	if m.Stats == nil {
		return nil
	}
	return m.Stats[p.AssocID]
}

// MemEndpoints is an Endpoints over a fixed slice.
type MemEndpoints struct {
	Eps []*Endpoint
}

// List returns all endpoints.
func (m *MemEndpoints) List() []*Endpoint {
	return m.Eps
}

// Find returns the endpoint bound to addr, nil if none.
func (m *MemEndpoints) Find(addr netip.Addr) *Endpoint {
	for _, ep := range m.Eps {
		if ep.Addr.Addr() == addr {
			return ep
		}
	}
	return nil
}

// MemRestrictions holds the two restrict lists.
type MemRestrictions struct {
	IPv4 []*RestrictEntry
	IPv6 []*RestrictEntry
}

// V4 returns the IPv4 restrict list.
func (m *MemRestrictions) V4() []*RestrictEntry { return m.IPv4 }

// V6 returns the IPv6 restrict list.
func (m *MemRestrictions) V6() []*RestrictEntry { return m.IPv6 }

// NopConfigurer rejects every remote configuration directive. Daemons
// that support runtime reconfiguration plug their parser in instead.
type NopConfigurer struct{}

// ConfigureRemotely reports one error for any non-empty input.
func (NopConfigurer) ConfigureRemotely(_ netip.AddrPort, text string) (int, int, string) {
	if len(text) == 0 {
		return 0, 0, ""
	}
	return 0, 1, "runtime configuration is not enabled"
}
