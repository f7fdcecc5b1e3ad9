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

// maxKeyID is the largest symmetric key id; larger values render hex.
const maxKeyID = 65535

type peerEmitFn func(ctx *response, p *Peer)

// peerEmit maps a peer variable code to its emitter.
var peerEmit map[uint16]peerEmitFn

func init() {
	peerEmit = map[uint16]peerEmitFn{
		cpConfig: func(ctx *response, p *Peer) {
			v := uint64(0)
			if p.Configured {
				v = 1
			}
			ctx.putUint(peerVar[cpConfig].Text, v)
		},
		cpAuthEnable: func(ctx *response, p *Peer) {
			v := uint64(0)
			if p.KeyID == 0 {
				v = 1
			}
			ctx.putUint(peerVar[cpAuthEnable].Text, v)
		},
		cpAuthentic: func(ctx *response, p *Peer) {
			v := uint64(0)
			if p.Authentic {
				v = 1
			}
			ctx.putUint(peerVar[cpAuthentic].Text, v)
		},
		cpSrcAdr: func(ctx *response, p *Peer) {
			ctx.putAdr(peerVar[cpSrcAdr].Text, 0, p.SrcAdr)
		},
		cpSrcPort: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpSrcPort].Text, uint64(p.SrcAdr.Port()))
		},
		cpSrcHost: func(ctx *response, p *Peer) {
			if p.Hostname != "" {
				ctx.putStr(peerVar[cpSrcHost].Text, p.Hostname)
			}
			if p.IsRefclock {
				ctx.putStr(peerVar[cpSrcHost].Text, p.RefclockName)
			}
		},
		cpDstAdr: func(ctx *response, p *Peer) {
			ctx.putAdr(peerVar[cpDstAdr].Text, 0, p.DstAdr)
		},
		cpDstPort: func(ctx *response, p *Peer) {
			var port uint64
			if p.DstAdr.IsValid() {
				port = uint64(p.DstAdr.Port())
			}
			ctx.putUint(peerVar[cpDstPort].Text, port)
		},
		cpIn: func(ctx *response, p *Peer) {
			if p.In > 0 {
				ctx.putDbl(peerVar[cpIn].Text, p.In/1e3)
			}
		},
		cpOut: func(ctx *response, p *Peer) {
			if p.Out > 0 {
				ctx.putDbl(peerVar[cpOut].Text, p.Out/1e3)
			}
		},
		cpRate: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpRate].Text, uint64(p.Throttle))
		},
		cpLeap: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpLeap].Text, uint64(p.Leap))
		},
		cpHMode: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpHMode].Text, uint64(p.HMode))
		},
		cpStratum: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpStratum].Text, uint64(p.Stratum))
		},
		cpPPoll: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpPPoll].Text, uint64(p.PPoll))
		},
		cpHPoll: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpHPoll].Text, uint64(p.HPoll))
		},
		cpPrecision: func(ctx *response, p *Peer) {
			ctx.putInt(peerVar[cpPrecision].Text, int64(p.Precision))
		},
		cpRootDelay: func(ctx *response, p *Peer) {
			ctx.putDbl(peerVar[cpRootDelay].Text, p.RootDelay*1e3)
		},
		cpRootDispersion: func(ctx *response, p *Peer) {
			ctx.putDbl(peerVar[cpRootDispersion].Text, p.RootDisp*1e3)
		},
		cpRefID: func(ctx *response, p *Peer) {
			if p.IsRefclock {
				ctx.putRefID(peerVar[cpRefID].Text, p.RefID)
				return
			}
			if p.Stratum > 1 && p.Stratum < stratumUnspec {
				ctx.putAdr(peerVar[cpRefID].Text, p.RefID, invalidAddrPort)
			} else {
				ctx.putRefID(peerVar[cpRefID].Text, p.RefID)
			}
		},
		cpRefTime: func(ctx *response, p *Peer) {
			ctx.putTS(peerVar[cpRefTime].Text, p.RefTime)
		},
		cpRec: func(ctx *response, p *Peer) {
			ctx.putTS(peerVar[cpRec].Text, p.Rec)
		},
		cpXmt: func(ctx *response, p *Peer) {
			ctx.putTS(peerVar[cpXmt].Text, p.Xmt)
		},
		cpBias: func(ctx *response, p *Peer) {
			if p.Bias != 0 {
				ctx.putDbl(peerVar[cpBias].Text, p.Bias*1e3)
			}
		},
		cpReach: func(ctx *response, p *Peer) {
			ctx.putHex(peerVar[cpReach].Text, uint64(p.Reach))
		},
		cpFlash: func(ctx *response, p *Peer) {
			ctx.putHex(peerVar[cpFlash].Text, uint64(p.Flash))
		},
		cpTTL: func(ctx *response, p *Peer) {
			if p.IsRefclock {
				ctx.putUint(peerVar[cpTTL].Text, uint64(p.TTL))
			}
		},
		cpUnreach: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpUnreach].Text, uint64(p.Unreach))
		},
		cpTimer: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpTimer].Text, p.Timer)
		},
		cpDelay: func(ctx *response, p *Peer) {
			ctx.putDbl6(peerVar[cpDelay].Text, p.Delay*1e3)
		},
		cpOffset: func(ctx *response, p *Peer) {
			ctx.putDbl6(peerVar[cpOffset].Text, p.Offset*1e3)
		},
		cpJitter: func(ctx *response, p *Peer) {
			ctx.putDbl6(peerVar[cpJitter].Text, p.Jitter*1e3)
		},
		cpDispersion: func(ctx *response, p *Peer) {
			ctx.putDbl6(peerVar[cpDispersion].Text, p.Disp*1e3)
		},
		cpKeyID: func(ctx *response, p *Peer) {
			if p.KeyID > maxKeyID {
				ctx.putHex(peerVar[cpKeyID].Text, uint64(p.KeyID))
			} else {
				ctx.putUint(peerVar[cpKeyID].Text, uint64(p.KeyID))
			}
		},
		cpFiltDelay: func(ctx *response, p *Peer) {
			ctx.putArray(peerVar[cpFiltDelay].Text, p.FiltDelay, p.FilterNextPt)
		},
		cpFiltOffset: func(ctx *response, p *Peer) {
			ctx.putArray(peerVar[cpFiltOffset].Text, p.FiltOffset, p.FilterNextPt)
		},
		cpFiltError: func(ctx *response, p *Peer) {
			ctx.putArray(peerVar[cpFiltError].Text, p.FiltDisp, p.FilterNextPt)
		},
		cpPMode: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpPMode].Text, uint64(p.PMode))
		},
		cpReceived: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpReceived].Text, p.Received)
		},
		cpSent: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpSent].Text, p.Sent)
		},
		cpVarList: func(ctx *response, p *Peer) {
			ctx.putVarList(peerVar[cpVarList].Text, peerVar, nil)
		},
		cpTimeRec: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpTimeRec].Text, p.TimeRec)
		},
		cpTimeReach: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpTimeReach].Text, p.TimeReach)
		},
		cpBadAuth: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpBadAuth].Text, p.BadAuth)
		},
		cpBogusOrg: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpBogusOrg].Text, p.BogusOrg)
		},
		cpOldPkt: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpOldPkt].Text, p.OldPkt)
		},
		cpSelDisp: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpSelDisp].Text, p.SelDisp)
		},
		cpSelBroken: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpSelBroken].Text, p.SelBroken)
		},
		cpCandidate: func(ctx *response, p *Peer) {
			ctx.putUint(peerVar[cpCandidate].Text, uint64(p.Status))
		},
	}
}

// putPeer outputs one peer variable by code.
func (ctx *response) putPeer(code uint16, p *Peer) {
	if emit, ok := peerEmit[code]; ok {
		emit(ctx, p)
	}
}
