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
	"strings"
)

// stratumUnspec marks an unsynchronized stratum; refids at or above it
// are printable tags, not addresses.
const stratumUnspec = 16

// sysEmit maps a system variable code to its emitter. One table
// instead of a hundred-armed switch.
type sysEmitFn func(ctx *response, s *SystemSnapshot)

var sysEmit map[uint16]sysEmitFn

func init() {
	sysEmit = map[uint16]sysEmitFn{
		csLeap: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csLeap].Text, uint64(s.Leap))
		},
		csStratum: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csStratum].Text, uint64(s.Stratum))
		},
		csPrecision: func(ctx *response, s *SystemSnapshot) {
			ctx.putInt(sysVar[csPrecision].Text, int64(s.Precision))
		},
		csRootDelay: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl(sysVar[csRootDelay].Text, s.RootDelay*1e3)
		},
		csRootDispersion: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl(sysVar[csRootDispersion].Text, s.RootDisp*1e3)
		},
		csRefID: func(ctx *response, s *SystemSnapshot) {
			if s.Stratum > 1 && s.Stratum < stratumUnspec {
				ctx.putAdr(sysVar[csRefID].Text, s.RefID, invalidAddrPort)
			} else {
				ctx.putRefID(sysVar[csRefID].Text, s.RefID)
			}
		},
		csRefTime: func(ctx *response, s *SystemSnapshot) {
			ctx.putTS(sysVar[csRefTime].Text, s.RefTime)
		},
		csPoll: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csPoll].Text, uint64(s.Poll))
		},
		csPeerID: func(ctx *response, s *SystemSnapshot) {
			var id uint64
			if p := ctx.r.peers.SysPeer(); p != nil {
				id = uint64(p.AssocID)
			}
			ctx.putUint(sysVar[csPeerID].Text, id)
		},
		csPeerAdr: func(ctx *response, s *SystemSnapshot) {
			ss := "0.0.0.0:0"
			if p := ctx.r.peers.SysPeer(); p != nil && p.DstAdr.IsValid() {
				ss = sockPortToA(p.SrcAdr)
			}
			ctx.putUnqStr(sysVar[csPeerAdr].Text, ss)
		},
		csPeerMode: func(ctx *response, s *SystemSnapshot) {
			var mode uint64
			if p := ctx.r.peers.SysPeer(); p != nil {
				mode = uint64(p.HMode)
			}
			ctx.putUint(sysVar[csPeerMode].Text, mode)
		},
		csOffset: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl6(sysVar[csOffset].Text, s.Offset*1e3)
		},
		csDrift: func(ctx *response, s *SystemSnapshot) {
			// frequency (s/s), reported as us/s a.k.a. ppm
			ctx.putDbl6(sysVar[csDrift].Text, s.Drift*1e6)
		},
		csJitter: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl6(sysVar[csJitter].Text, s.Jitter*1e3)
		},
		csError: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl6(sysVar[csError].Text, s.ClkJitter*1e3)
		},
		csClock: func(ctx *response, s *SystemSnapshot) {
			ctx.putTS(sysVar[csClock].Text, ctx.r.clock.Now())
		},
		csProcessor: func(ctx *response, s *SystemSnapshot) {
			ctx.putStr(sysVar[csProcessor].Text, s.Processor)
		},
		csSystem: func(ctx *response, s *SystemSnapshot) {
			ctx.putStr(sysVar[csSystem].Text, s.System)
		},
		csVersion: func(ctx *response, s *SystemSnapshot) {
			ctx.putStr(sysVar[csVersion].Text, s.Version)
		},
		csStabil: func(ctx *response, s *SystemSnapshot) {
			// clk_wander (s/s), output as us/s
			ctx.putDbl6(sysVar[csStabil].Text, s.ClkWander*1e6)
		},
		csVarList: func(ctx *response, s *SystemSnapshot) {
			ctx.putVarList(sysVar[csVarList].Text, sysVar, ctx.r.extSysVar)
		},
		csTAI: func(ctx *response, s *SystemSnapshot) {
			if s.TAI > 0 {
				ctx.putUint(sysVar[csTAI].Text, s.TAI)
			}
		},
		csLeapTab: func(ctx *response, s *SystemSnapshot) {
			if s.LeapTab > 0 {
				ctx.putFS(sysVar[csLeapTab].Text, s.LeapTab)
			}
		},
		csLeapEnd: func(ctx *response, s *SystemSnapshot) {
			if s.LeapEnd > 0 {
				ctx.putFS(sysVar[csLeapEnd].Text, s.LeapEnd)
			}
		},
		csLeapSmearIntv: func(ctx *response, s *SystemSnapshot) {
			if s.LeapSmearInterval > 0 {
				ctx.putUint(sysVar[csLeapSmearIntv].Text, s.LeapSmearInterval)
			}
		},
		csLeapSmearOffs: func(ctx *response, s *SystemSnapshot) {
			if s.LeapSmearInterval > 0 {
				ctx.putDbl(sysVar[csLeapSmearOffs].Text, s.LeapSmearOffset*1e3)
			}
		},
		csRate: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csRate].Text, uint64(s.MinPoll))
		},
		csMRUEnabled: func(ctx *response, s *SystemSnapshot) {
			ctx.putHex(sysVar[csMRUEnabled].Text, uint64(s.MRUEnabled))
		},
		csMRUDepth: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUDepth].Text, s.MRUDepth)
		},
		csMRUDeepest: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUDeepest].Text, s.MRUDeepest)
		},
		csMRUMinDepth: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUMinDepth].Text, s.MRUMinDepth)
		},
		csMRUMaxAge: func(ctx *response, s *SystemSnapshot) {
			ctx.putInt(sysVar[csMRUMaxAge].Text, s.MRUMaxAge)
		},
		csMRUMinAge: func(ctx *response, s *SystemSnapshot) {
			ctx.putInt(sysVar[csMRUMinAge].Text, s.MRUMinAge)
		},
		csMRUMaxDepth: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUMaxDepth].Text, s.MRUMaxDepth)
		},
		csMRUMem: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUMem].Text, s.MRUMem)
		},
		csMRUMaxMem: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUMaxMem].Text, s.MRUMaxMem)
		},
		csMRUExists: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUExists].Text, s.MRUExists)
		},
		csMRUNew: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUNew].Text, s.MRUNew)
		},
		csMRURecycleOld: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRURecycleOld].Text, s.MRURecycleOld)
		},
		csMRURecycleFull: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRURecycleFull].Text, s.MRURecycleFull)
		},
		csMRUNone: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUNone].Text, s.MRUNone)
		},
		csMRUOldestAge: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csMRUOldestAge].Text, s.MRUOldestAge)
		},
		csSSUptime: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSUptime].Text, s.Uptime)
		},
		csSSReset: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSReset].Text, s.StatsResetAge)
		},
		csSSReceived: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSReceived].Text, s.SSReceived)
		},
		csSSThisVer: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSThisVer].Text, s.SSThisVer)
		},
		csSSOldVer: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSOldVer].Text, s.SSOldVer)
		},
		csSSBadFormat: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSBadFormat].Text, s.SSBadFormat)
		},
		csSSBadAuth: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSBadAuth].Text, s.SSBadAuth)
		},
		csSSDeclined: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSDeclined].Text, s.SSDeclined)
		},
		csSSRestricted: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSRestricted].Text, s.SSRestricted)
		},
		csSSLimited: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSLimited].Text, s.SSLimited)
		},
		csSSKODSent: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSKODSent].Text, s.SSKODSent)
		},
		csSSProcessed: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csSSProcessed].Text, s.SSProcessed)
		},
		csAuthDelay: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl(sysVar[csAuthDelay].Text, s.AuthDelay*1e3)
		},
		csAuthKeys: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csAuthKeys].Text, s.AuthKeys)
		},
		csAuthFreeK: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csAuthFreeK].Text, s.AuthFreeKeys)
		},
		csAuthKLookups: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csAuthKLookups].Text, s.AuthKLookups)
		},
		csAuthKNotFound: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csAuthKNotFound].Text, s.AuthKNotFound)
		},
		csAuthKUncached: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csAuthKUncached].Text, s.AuthKUncached)
		},
		csAuthKExpired: func(ctx *response, s *SystemSnapshot) {
			// historical relic - autokey used to expire keys
			ctx.putUint(sysVar[csAuthKExpired].Text, 0)
		},
		csAuthEncrypts: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csAuthEncrypts].Text, s.AuthEncrypts)
		},
		csAuthDecrypts: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csAuthDecrypts].Text, s.AuthDecrypts)
		},
		csAuthReset: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csAuthReset].Text, s.AuthResetAge)
		},
		csKOffset: func(ctx *response, s *SystemSnapshot) {
			putKernLoop(ctx, csKOffset, func(k *KernelLoop) {
				ctx.putDblF(sysVar[csKOffset].Text, false, -1, k.Offset)
			})
		},
		csKFreq: func(ctx *response, s *SystemSnapshot) {
			putKernLoop(ctx, csKFreq, func(k *KernelLoop) {
				ctx.putDblF(sysVar[csKFreq].Text, false, -1, k.Freq)
			})
		},
		csKMaxErr: func(ctx *response, s *SystemSnapshot) {
			putKernLoop(ctx, csKMaxErr, func(k *KernelLoop) {
				ctx.putDblF(sysVar[csKMaxErr].Text, false, 6, k.MaxErr)
			})
		},
		csKEstErr: func(ctx *response, s *SystemSnapshot) {
			putKernLoop(ctx, csKEstErr, func(k *KernelLoop) {
				ctx.putDblF(sysVar[csKEstErr].Text, false, 6, k.EstErr)
			})
		},
		csKSTFlags: func(ctx *response, s *SystemSnapshot) {
			ss := ""
			if s.Kernel.Available {
				ss = s.Kernel.STFlags
			}
			ctx.putStr(sysVar[csKSTFlags].Text, ss)
		},
		csKTimeConst: func(ctx *response, s *SystemSnapshot) {
			putKernLoop(ctx, csKTimeConst, func(k *KernelLoop) {
				ctx.putInt(sysVar[csKTimeConst].Text, k.TimeConst)
			})
		},
		csKPrecision: func(ctx *response, s *SystemSnapshot) {
			putKernLoop(ctx, csKPrecision, func(k *KernelLoop) {
				ctx.putDblF(sysVar[csKPrecision].Text, false, 6, k.Precision)
			})
		},
		csKFreqTol: func(ctx *response, s *SystemSnapshot) {
			putKernLoop(ctx, csKFreqTol, func(k *KernelLoop) {
				ctx.putDblF(sysVar[csKFreqTol].Text, false, -1, k.FreqTol)
			})
		},
		csKPPSFreq: func(ctx *response, s *SystemSnapshot) {
			putKernPPS(ctx, csKPPSFreq, func(k *KernelLoop) {
				ctx.putDblF(sysVar[csKPPSFreq].Text, false, -1, k.PPSFreq)
			})
		},
		csKPPSStabil: func(ctx *response, s *SystemSnapshot) {
			putKernPPS(ctx, csKPPSStabil, func(k *KernelLoop) {
				ctx.putDblF(sysVar[csKPPSStabil].Text, false, -1, k.PPSStabil)
			})
		},
		csKPPSJitter: func(ctx *response, s *SystemSnapshot) {
			putKernPPS(ctx, csKPPSJitter, func(k *KernelLoop) {
				ctx.putDbl(sysVar[csKPPSJitter].Text, k.PPSJitter)
			})
		},
		csKPPSCalibDur: func(ctx *response, s *SystemSnapshot) {
			putKernPPS(ctx, csKPPSCalibDur, func(k *KernelLoop) {
				ctx.putInt(sysVar[csKPPSCalibDur].Text, k.PPSCalibDur)
			})
		},
		csKPPSCalibs: func(ctx *response, s *SystemSnapshot) {
			putKernPPS(ctx, csKPPSCalibs, func(k *KernelLoop) {
				ctx.putInt(sysVar[csKPPSCalibs].Text, k.PPSCalibs)
			})
		},
		csKPPSCalibErrs: func(ctx *response, s *SystemSnapshot) {
			putKernPPS(ctx, csKPPSCalibErrs, func(k *KernelLoop) {
				ctx.putInt(sysVar[csKPPSCalibErrs].Text, k.PPSCalibErr)
			})
		},
		csKPPSJitExc: func(ctx *response, s *SystemSnapshot) {
			putKernPPS(ctx, csKPPSJitExc, func(k *KernelLoop) {
				ctx.putInt(sysVar[csKPPSJitExc].Text, k.PPSJitExc)
			})
		},
		csKPPSStbExc: func(ctx *response, s *SystemSnapshot) {
			putKernPPS(ctx, csKPPSStbExc, func(k *KernelLoop) {
				ctx.putInt(sysVar[csKPPSStbExc].Text, k.PPSStbExc)
			})
		},
		csIOStatsReset: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csIOStatsReset].Text, s.IOStatsResetAge)
		},
		csTotalRbuf: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csTotalRbuf].Text, s.TotalRecvBufs)
		},
		csFreeRbuf: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csFreeRbuf].Text, s.FreeRecvBufs)
		},
		csUsedRbuf: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csUsedRbuf].Text, s.UsedRecvBufs)
		},
		csRbufLowater: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csRbufLowater].Text, s.LowWaterAdds)
		},
		csIODropped: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csIODropped].Text, s.IODropped)
		},
		csIOIgnored: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csIOIgnored].Text, s.IOIgnored)
		},
		csIOReceived: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csIOReceived].Text, s.IOReceived)
		},
		csIOSent: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csIOSent].Text, s.IOSent)
		},
		csIOSendFailed: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csIOSendFailed].Text, s.IOSendFailed)
		},
		csIOWakeups: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csIOWakeups].Text, s.IOWakeups)
		},
		csIOGoodWakeups: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csIOGoodWakeups].Text, s.IOGoodWakeups)
		},
		csTimerStatsReset: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csTimerStatsReset].Text, s.TimerResetAge)
		},
		csTimerOverruns: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csTimerOverruns].Text, s.TimerOverruns)
		},
		csTimerXmts: func(ctx *response, s *SystemSnapshot) {
			ctx.putUint(sysVar[csTimerXmts].Text, s.TimerXmits)
		},
		csFuzz: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl6(sysVar[csFuzz].Text, s.Fuzz*1e3)
		},
		csWanderThresh: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl(sysVar[csWanderThresh].Text, s.WanderThresh*1e6)
		},
		csTick: func(ctx *response, s *SystemSnapshot) {
			ctx.putDbl6(sysVar[csTick].Text, s.Tick*1e3)
		},
	}
}

// putKernLoop emits through put when the kernel loop is available,
// else a zero.
func putKernLoop(ctx *response, code uint16, put func(*KernelLoop)) {
	snap := ctx.r.system.Snapshot()
	if !snap.Kernel.Available {
		ctx.putInt(sysVar[code].Text, 0)
		return
	}
	put(&snap.Kernel)
}

// putKernPPS emits through put when kernel hard PPS is active, else a
// zero.
func putKernPPS(ctx *response, code uint16, put func(*KernelLoop)) {
	snap := ctx.r.system.Snapshot()
	if !snap.Kernel.Available || !snap.Kernel.PPSActive {
		ctx.putInt(sysVar[code].Text, 0)
		return
	}
	put(&snap.Kernel)
}

// putSys outputs one system variable by code.
func (ctx *response) putSys(code uint16, s *SystemSnapshot) {
	if emit, ok := sysEmit[code]; ok {
		emit(ctx, s)
	}
}

// putVarList emits a quoted, comma-joined list of every variable name
// in the built-in table followed by the extension table.
func (ctx *response) putVarList(tag string, builtin, ext []Var) {
	var names []string
	for _, v := range builtin {
		if v.Flags&(FlagPadding|FlagEOV) != 0 {
			continue
		}
		names = append(names, varName(v.Text))
	}
	for _, v := range ext {
		if v.Flags&(FlagPadding|FlagEOV) != 0 || v.Text == "" {
			continue
		}
		names = append(names, varName(v.Text))
	}
	ctx.putData([]byte(tag+`="`+strings.Join(names, ",")+`"`), false)
}
