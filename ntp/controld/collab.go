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

	"github.com/timekeep/timekeep/ntp/control"
)

// Transport delivers outbound datagrams. The inbound side lives in the
// daemon loop, which hands each received datagram to Responder.Process.
type Transport interface {
	Send(dst netip.AddrPort, local *Endpoint, b []byte) error
}

// KeyStore is the symmetric key database consulted for request MACs
// and response authentication. The responder never manages keys.
type KeyStore interface {
	IsTrusted(keyID uint32) bool
	// VerifyMAC checks digest against message under keyID. digest
	// excludes the 4-byte key id that precedes it on the wire.
	VerifyMAC(keyID uint32, message, digest []byte) bool
	// ComputeMAC returns the digest (without key id) over message.
	ComputeMAC(keyID uint32, message []byte) []byte
}

// Clock reads the local clock as an NTP fixed-point timestamp.
type Clock interface {
	Now() control.LFP
}

// Random is a 32-bit CSPRNG draw.
type Random interface {
	Uint32() uint32
}

// Peer is one association, a snapshot of what the peer subsystem knows.
// Pointers handed out by PeerStore are only valid until the current
// handler returns.
type Peer struct {
	AssocID  uint16
	SrcAdr   netip.AddrPort
	DstAdr   netip.AddrPort
	Hostname string

	// Status word inputs
	Selection uint8 // low 3 bits of the peer status byte
	NumEvents uint8
	LastEvent uint8

	Configured bool // configured, not preemptable
	Authentic  bool
	Reach      uint8
	Broadcast  bool

	Leap      uint8
	HMode     uint8
	PMode     uint8
	Stratum   uint8
	PPoll     uint8
	HPoll     uint8
	Precision int8

	RootDelay float64
	RootDisp  float64
	RefID     uint32
	RefTime   control.LFP
	Rec       control.LFP
	Xmt       control.LFP

	Unreach  uint32
	Timer    uint64 // seconds until next poll
	Delay    float64
	Offset   float64
	Jitter   float64
	Disp     float64
	KeyID    uint32
	Flash    uint16
	Throttle uint32
	Bias     float64
	In       float64 // r21
	Out      float64 // r34

	FiltDelay    [8]float64
	FiltOffset   [8]float64
	FiltDisp     [8]float64
	FilterNextPt int

	Received  uint64
	Sent      uint64
	TimeRec   uint64 // seconds since last packet received
	TimeReach uint64 // seconds since reachability change
	BadAuth   uint64
	BogusOrg  uint64
	OldPkt    uint64
	SelDisp   uint64
	SelBroken uint64
	Status    uint8 // selection status byte, "candidate"

	IsRefclock   bool
	RefclockName string
	TTL          uint32
	SSTClockType uint8
}

// PeerStore finds peers by association id and iterates them in the
// subsystem's list order.
type PeerStore interface {
	FindByAssoc(id uint16) *Peer
	Peers() []*Peer
	SysPeer() *Peer
	// ClearEvents resets the peer's event counter after an
	// authenticated read, mirroring what the event machinery expects.
	ClearEvents(p *Peer)
}

// RefclockStat is the per-driver status block a refclock reports.
type RefclockStat struct {
	Name       string
	TimeCode   string
	Polls      uint64
	NoResponse uint64
	BadFormat  uint64
	BadData    uint64
	FudgeTime1 float64
	FudgeTime2 float64
	FudgeVal1  int32
	FudgeVal2  uint32
	HaveFlags  uint8
	Flags      uint8
	Desc       string
	KV         []Var // driver-defined name=value extensions

	CurrentStatus uint8
	LastEvent     uint8
}

// Refclock have-flags gating fudge emission.
const (
	ClkHaveTime1 uint8 = 0x1
	ClkHaveTime2 uint8 = 0x2
	ClkHaveVal1  uint8 = 0x4
	ClkHaveVal2  uint8 = 0x8
)

// Refclocks exposes driver status for refclock peers.
type Refclocks interface {
	Status(p *Peer) *RefclockStat
}

// KernelLoop is the kernel discipline snapshot behind the k* variables.
// Zero-valued when the kernel loop is unavailable.
type KernelLoop struct {
	Available bool
	PPSActive bool

	Offset    float64 // ms
	Freq      float64 // ppm
	MaxErr    float64 // ms
	EstErr    float64 // ms
	STFlags   string
	TimeConst int64
	Precision float64 // ms
	FreqTol   float64 // ppm

	PPSFreq     float64
	PPSStabil   float64
	PPSJitter   float64 // ms
	PPSCalibDur int64
	PPSCalibs   int64
	PPSCalibErr int64
	PPSJitExc   int64
	PPSStbExc   int64
}

// SystemSnapshot carries every system variable input the read handlers
// can be asked for. The daemon refreshes it through SystemState.
type SystemSnapshot struct {
	Leap      uint8
	Stratum   uint8
	Precision int8
	RootDelay float64
	RootDisp  float64
	RefID     uint32
	RefTime   control.LFP
	Poll      uint8
	MinPoll   uint8
	Offset    float64 // s
	Drift     float64 // s/s
	Jitter    float64 // s
	ClkJitter float64 // s
	ClkWander float64 // s/s
	Processor string
	System    string
	Version   string
	TAI       uint64
	LeapTab   uint32 // filestamp of leap table, 0 if none
	LeapEnd   uint32 // filestamp of leap table expiry, 0 if none

	LeapSmearInterval uint64
	LeapSmearOffset   float64 // s

	NumEvents uint8
	LastEvent uint8

	// MRU bookkeeping mirrored from the monitor subsystem
	MRUEnabled     uint32
	MRUDepth       uint64
	MRUDeepest     uint64
	MRUMinDepth    uint64
	MRUMaxAge      int64
	MRUMinAge      int64
	MRUMaxDepth    uint64
	MRUMem         uint64 // kilobytes, rounded
	MRUMaxMem      uint64 // kilobytes, rounded
	MRUExists      uint64
	MRUNew         uint64
	MRURecycleOld  uint64
	MRURecycleFull uint64
	MRUNone        uint64
	MRUOldestAge   uint64

	Uptime        uint64
	StatsResetAge uint64
	SSReceived    uint64
	SSThisVer     uint64
	SSOldVer      uint64
	SSBadFormat   uint64
	SSBadAuth     uint64
	SSDeclined    uint64
	SSRestricted  uint64
	SSLimited     uint64
	SSKODSent     uint64
	SSProcessed   uint64

	AuthDelay     float64 // s
	AuthKeys      uint64
	AuthFreeKeys  uint64
	AuthKLookups  uint64
	AuthKNotFound uint64
	AuthKUncached uint64
	AuthEncrypts  uint64
	AuthDecrypts  uint64
	AuthResetAge  uint64

	Kernel KernelLoop

	IOStatsResetAge uint64
	TotalRecvBufs   uint64
	FreeRecvBufs    uint64
	UsedRecvBufs    uint64
	LowWaterAdds    uint64
	IODropped       uint64
	IOIgnored       uint64
	IOReceived      uint64
	IOSent          uint64
	IOSendFailed    uint64
	IOWakeups       uint64
	IOGoodWakeups   uint64

	TimerResetAge uint64
	TimerOverruns uint64
	TimerXmits    uint64

	Fuzz         float64 // s
	WanderThresh float64 // s/s
	Tick         float64 // s
}

// SystemState provides the current system snapshot and lets the
// responder report events.
type SystemState interface {
	Snapshot() *SystemSnapshot
	// ClearEvents resets the system event counter after an
	// authenticated read.
	ClearEvents()
	// BumpRestricted counts a request rejected by restrictions.
	BumpRestricted()
}

// MRUEntry is one row of the most-recently-used client table, newest
// at the head of the list.
type MRUEntry struct {
	Addr     netip.AddrPort
	First    control.LFP
	Last     control.LFP
	Count    int64
	VnMode   uint8
	Restrict uint16
	Local    *Endpoint
}

// MRUList is read-only access to the monitor subsystem's MRU table.
// Newer moves toward the head (most recent); Oldest is the tail.
type MRUList interface {
	Len() int
	Oldest() *MRUEntry
	Newer(e *MRUEntry) *MRUEntry
	Lookup(addr netip.AddrPort) *MRUEntry
}

// Endpoint is one local address the daemon receives on.
type Endpoint struct {
	Index         int
	Name          string
	Addr          netip.AddrPort
	Bcast         netip.AddrPort
	BcastOpen     bool
	Flags         uint32
	LastTTL       int32
	MCastCount    int64
	Received      int64
	Sent          int64
	NotSent       int64
	PeerCount     uint64
	Uptime        uint64
	IgnorePackets bool
}

// Endpoints iterates the local endpoint list.
type Endpoints interface {
	List() []*Endpoint
	// Find returns the endpoint bound to addr, nil if none.
	Find(addr netip.Addr) *Endpoint
}

// RestrictEntry is one access-control row.
type RestrictEntry struct {
	Addr       netip.Addr
	Mask       netip.Addr
	Hits       uint64
	Flags      uint16
	MatchFlags uint16
}

// Restrictions exposes the IPv4 and IPv6 restrict lists.
type Restrictions interface {
	V4() []*RestrictEntry
	V6() []*RestrictEntry
}

// Restrict flag bits relevant to the responder.
const (
	RestrictNoQuery   uint16 = 0x0008
	RestrictNoModify  uint16 = 0x0010
	RestrictLimited   uint16 = 0x0040
	RestrictNoMRUList uint16 = 0x0800
)

// Configurer applies a remote-configuration request.
type Configurer interface {
	// ConfigureRemotely parses and applies the newline-terminated
	// directive text, returning the count of applied directives, the
	// count of errors, and the accumulated error text.
	ConfigureRemotely(src netip.AddrPort, text string) (ok int, errs int, errText string)
}
