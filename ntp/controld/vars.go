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

// VarFlag is the descriptor flag bitset.
type VarFlag uint16

// Descriptor flags. RW doubles as the write permission.
const (
	FlagPadding VarFlag = 0x01
	FlagRO      VarFlag = 0x02
	FlagRW      VarFlag = 0x04
	FlagDef     VarFlag = 0x08
	FlagEOV     VarFlag = 0x10
)

// Var describes one variable: its code, flags and the "name" or
// "name=value" text. Tables are ordered and end with an EOV sentinel.
type Var struct {
	Code  uint16
	Flags VarFlag
	Text  string
}

// System variable codes.
const (
	csLeap            = 1
	csStratum         = 2
	csPrecision       = 3
	csRootDelay       = 4
	csRootDispersion  = 5
	csRefID           = 6
	csRefTime         = 7
	csPoll            = 8
	csPeerID          = 9
	csOffset          = 10
	csDrift           = 11
	csJitter          = 12
	csError           = 13
	csClock           = 14
	csProcessor       = 15
	csSystem          = 16
	csVersion         = 17
	csStabil          = 18
	csVarList         = 19
	csTAI             = 20
	csLeapTab         = 21
	csLeapEnd         = 22
	csRate            = 23
	csMRUEnabled      = 24
	csMRUDepth        = 25
	csMRUDeepest      = 26
	csMRUMinDepth     = 27
	csMRUMaxAge       = 28
	csMRUMinAge       = 29
	csMRUMaxDepth     = 30
	csMRUMem          = 31
	csMRUMaxMem       = 32
	csSSUptime        = 33
	csSSReset         = 34
	csSSReceived      = 35
	csSSThisVer       = 36
	csSSOldVer        = 37
	csSSBadFormat     = 38
	csSSBadAuth       = 39
	csSSDeclined      = 40
	csSSRestricted    = 41
	csSSLimited       = 42
	csSSKODSent       = 43
	csSSProcessed     = 44
	csPeerAdr         = 45
	csPeerMode        = 46
	csAuthDelay       = 47
	csAuthKeys        = 48
	csAuthFreeK       = 49
	csAuthKLookups    = 50
	csAuthKNotFound   = 51
	csAuthKUncached   = 52
	csAuthKExpired    = 53
	csAuthEncrypts    = 54
	csAuthDecrypts    = 55
	csAuthReset       = 56
	csKOffset         = 57
	csKFreq           = 58
	csKMaxErr         = 59
	csKEstErr         = 60
	csKSTFlags        = 61
	csKTimeConst      = 62
	csKPrecision      = 63
	csKFreqTol        = 64
	csKPPSFreq        = 65
	csKPPSStabil      = 66
	csKPPSJitter      = 67
	csKPPSCalibDur    = 68
	csKPPSCalibs      = 69
	csKPPSCalibErrs   = 70
	csKPPSJitExc      = 71
	csKPPSStbExc      = 72
	csIOStatsReset    = 73
	csTotalRbuf       = 74
	csFreeRbuf        = 75
	csUsedRbuf        = 76
	csRbufLowater     = 77
	csIODropped       = 78
	csIOIgnored       = 79
	csIOReceived      = 80
	csIOSent          = 81
	csIOSendFailed    = 82
	csIOWakeups       = 83
	csIOGoodWakeups   = 84
	csTimerStatsReset = 85
	csTimerOverruns   = 86
	csTimerXmts       = 87
	csFuzz            = 88
	csWanderThresh    = 89
	csMRUExists       = 90
	csMRUNew          = 91
	csMRURecycleOld   = 92
	csMRURecycleFull  = 93
	csMRUNone         = 94
	csMRUOldestAge    = 95
	csLeapSmearIntv   = 96
	csLeapSmearOffs   = 97
	csTick            = 98
	csMaxCode         = csTick
)

// Peer variable codes.
const (
	cpConfig         = 1
	cpAuthEnable     = 2
	cpAuthentic      = 3
	cpSrcAdr         = 4
	cpSrcPort        = 5
	cpDstAdr         = 6
	cpDstPort        = 7
	cpLeap           = 8
	cpHMode          = 9
	cpStratum        = 10
	cpPPoll          = 11
	cpHPoll          = 12
	cpPrecision      = 13
	cpRootDelay      = 14
	cpRootDispersion = 15
	cpRefID          = 16
	cpRefTime        = 17
	cpOrg            = 18
	cpRec            = 19
	cpXmt            = 20
	cpReach          = 21
	cpUnreach        = 22
	cpTimer          = 23
	cpDelay          = 24
	cpOffset         = 25
	cpJitter         = 26
	cpDispersion     = 27
	cpKeyID          = 28
	cpFiltDelay      = 29
	cpFiltOffset     = 30
	cpPMode          = 31
	cpReceived       = 32
	cpSent           = 33
	cpFiltError      = 34
	cpFlash          = 35
	cpTTL            = 36
	cpVarList        = 37
	cpIn             = 38
	cpOut            = 39
	cpRate           = 40
	cpBias           = 41
	cpSrcHost        = 42
	cpTimeRec        = 43
	cpTimeReach      = 44
	cpBadAuth        = 45
	cpBogusOrg       = 46
	cpOldPkt         = 47
	cpSelDisp        = 48
	cpSelBroken      = 49
	cpCandidate      = 50
	cpMaxCode        = cpCandidate
)

// Clock variable codes.
const (
	ccName       = 1
	ccTimeCode   = 2
	ccPoll       = 3
	ccNoReply    = 4
	ccBadFormat  = 5
	ccBadData    = 6
	ccFudgeTime1 = 7
	ccFudgeTime2 = 8
	ccFudgeVal1  = 9
	ccFudgeVal2  = 10
	ccFlags      = 11
	ccDevice     = 12
	ccVarList    = 13
	ccMaxCode    = ccVarList
)

// sysVar can be indexed by the variable code to find the textual name.
var sysVar = []Var{
	{0, FlagPadding, ""},                             /* 0 */
	{csLeap, FlagRW, "leap"},                         /* 1 */
	{csStratum, FlagRO, "stratum"},                   /* 2 */
	{csPrecision, FlagRO, "precision"},               /* 3 */
	{csRootDelay, FlagRO, "rootdelay"},               /* 4 */
	{csRootDispersion, FlagRO, "rootdisp"},           /* 5 */
	{csRefID, FlagRO, "refid"},                       /* 6 */
	{csRefTime, FlagRO, "reftime"},                   /* 7 */
	{csPoll, FlagRO, "tc"},                           /* 8 */
	{csPeerID, FlagRO, "peer"},                       /* 9 */
	{csOffset, FlagRO, "offset"},                     /* 10 */
	{csDrift, FlagRO, "frequency"},                   /* 11 */
	{csJitter, FlagRO, "sys_jitter"},                 /* 12 */
	{csError, FlagRO, "clk_jitter"},                  /* 13 */
	{csClock, FlagRO, "clock"},                       /* 14 */
	{csProcessor, FlagRO, "processor"},               /* 15 */
	{csSystem, FlagRO, "system"},                     /* 16 */
	{csVersion, FlagRO, "version"},                   /* 17 */
	{csStabil, FlagRO, "clk_wander"},                 /* 18 */
	{csVarList, FlagRO, "sys_var_list"},              /* 19 */
	{csTAI, FlagRO, "tai"},                           /* 20 */
	{csLeapTab, FlagRO, "leapsec"},                   /* 21 */
	{csLeapEnd, FlagRO, "expire"},                    /* 22 */
	{csRate, FlagRO, "mintc"},                        /* 23 */
	{csMRUEnabled, FlagRO, "mru_enabled"},            /* 24 */
	{csMRUDepth, FlagRO, "mru_depth"},                /* 25 */
	{csMRUDeepest, FlagRO, "mru_deepest"},            /* 26 */
	{csMRUMinDepth, FlagRO, "mru_mindepth"},          /* 27 */
	{csMRUMaxAge, FlagRO, "mru_maxage"},              /* 28 */
	{csMRUMinAge, FlagRO, "mru_minage"},              /* 29 */
	{csMRUMaxDepth, FlagRO, "mru_maxdepth"},          /* 30 */
	{csMRUMem, FlagRO, "mru_mem"},                    /* 31 */
	{csMRUMaxMem, FlagRO, "mru_maxmem"},              /* 32 */
	{csSSUptime, FlagRO, "ss_uptime"},                /* 33 */
	{csSSReset, FlagRO, "ss_reset"},                  /* 34 */
	{csSSReceived, FlagRO, "ss_received"},            /* 35 */
	{csSSThisVer, FlagRO, "ss_thisver"},              /* 36 */
	{csSSOldVer, FlagRO, "ss_oldver"},                /* 37 */
	{csSSBadFormat, FlagRO, "ss_badformat"},          /* 38 */
	{csSSBadAuth, FlagRO, "ss_badauth"},              /* 39 */
	{csSSDeclined, FlagRO, "ss_declined"},            /* 40 */
	{csSSRestricted, FlagRO, "ss_restricted"},        /* 41 */
	{csSSLimited, FlagRO, "ss_limited"},              /* 42 */
	{csSSKODSent, FlagRO, "ss_kodsent"},              /* 43 */
	{csSSProcessed, FlagRO, "ss_processed"},          /* 44 */
	{csPeerAdr, FlagRO, "peeradr"},                   /* 45 */
	{csPeerMode, FlagRO, "peermode"},                 /* 46 */
	{csAuthDelay, FlagRO, "authdelay"},               /* 47 */
	{csAuthKeys, FlagRO, "authkeys"},                 /* 48 */
	{csAuthFreeK, FlagRO, "authfreek"},               /* 49 */
	{csAuthKLookups, FlagRO, "authklookups"},         /* 50 */
	{csAuthKNotFound, FlagRO, "authknotfound"},       /* 51 */
	{csAuthKUncached, FlagRO, "authkuncached"},       /* 52 */
	{csAuthKExpired, FlagRO, "authkexpired"},         /* 53 */
	{csAuthEncrypts, FlagRO, "authencrypts"},         /* 54 */
	{csAuthDecrypts, FlagRO, "authdecrypts"},         /* 55 */
	{csAuthReset, FlagRO, "authreset"},               /* 56 */
	{csKOffset, FlagRO, "koffset"},                   /* 57 */
	{csKFreq, FlagRO, "kfreq"},                       /* 58 */
	{csKMaxErr, FlagRO, "kmaxerr"},                   /* 59 */
	{csKEstErr, FlagRO, "kesterr"},                   /* 60 */
	{csKSTFlags, FlagRO, "kstflags"},                 /* 61 */
	{csKTimeConst, FlagRO, "ktimeconst"},             /* 62 */
	{csKPrecision, FlagRO, "kprecis"},                /* 63 */
	{csKFreqTol, FlagRO, "kfreqtol"},                 /* 64 */
	{csKPPSFreq, FlagRO, "kppsfreq"},                 /* 65 */
	{csKPPSStabil, FlagRO, "kppsstab"},               /* 66 */
	{csKPPSJitter, FlagRO, "kppsjitter"},             /* 67 */
	{csKPPSCalibDur, FlagRO, "kppscalibdur"},         /* 68 */
	{csKPPSCalibs, FlagRO, "kppscalibs"},             /* 69 */
	{csKPPSCalibErrs, FlagRO, "kppscaliberrs"},       /* 70 */
	{csKPPSJitExc, FlagRO, "kppsjitexc"},             /* 71 */
	{csKPPSStbExc, FlagRO, "kppsstbexc"},             /* 72 */
	{csIOStatsReset, FlagRO, "iostats_reset"},        /* 73 */
	{csTotalRbuf, FlagRO, "total_rbuf"},              /* 74 */
	{csFreeRbuf, FlagRO, "free_rbuf"},                /* 75 */
	{csUsedRbuf, FlagRO, "used_rbuf"},                /* 76 */
	{csRbufLowater, FlagRO, "rbuf_lowater"},          /* 77 */
	{csIODropped, FlagRO, "io_dropped"},              /* 78 */
	{csIOIgnored, FlagRO, "io_ignored"},              /* 79 */
	{csIOReceived, FlagRO, "io_received"},            /* 80 */
	{csIOSent, FlagRO, "io_sent"},                    /* 81 */
	{csIOSendFailed, FlagRO, "io_sendfailed"},        /* 82 */
	{csIOWakeups, FlagRO, "io_wakeups"},              /* 83 */
	{csIOGoodWakeups, FlagRO, "io_goodwakeups"},      /* 84 */
	{csTimerStatsReset, FlagRO, "timerstats_reset"},  /* 85 */
	{csTimerOverruns, FlagRO, "timer_overruns"},      /* 86 */
	{csTimerXmts, FlagRO, "timer_xmts"},              /* 87 */
	{csFuzz, FlagRO, "fuzz"},                         /* 88 */
	{csWanderThresh, FlagRO, "clk_wander_threshold"}, /* 89 */
	{csMRUExists, FlagRO, "mru_exists"},              /* 90 */
	{csMRUNew, FlagRO, "mru_new"},                    /* 91 */
	{csMRURecycleOld, FlagRO, "mru_recycleold"},      /* 92 */
	{csMRURecycleFull, FlagRO, "mru_recyclefull"},    /* 93 */
	{csMRUNone, FlagRO, "mru_none"},                  /* 94 */
	{csMRUOldestAge, FlagRO, "mru_oldest_age"},       /* 95 */
	{csLeapSmearIntv, FlagRO, "leapsmearinterval"},   /* 96 */
	{csLeapSmearOffs, FlagRO, "leapsmearoffset"},     /* 97 */
	{csTick, FlagRO, "tick"},                         /* 98 */
	{0, FlagEOV, ""},
}

// System variables emitted by default, in fuzzball order, more-or-less.
var defSysVar = []uint16{
	csVersion,
	csProcessor,
	csSystem,
	csLeap,
	csStratum,
	csPrecision,
	csRootDelay,
	csRootDispersion,
	csRefID,
	csRefTime,
	csClock,
	csPeerID,
	csPoll,
	csRate,
	csOffset,
	csDrift,
	csJitter,
	csError,
	csStabil,
	csTAI,
	csLeapTab,
	csLeapEnd,
}

var peerVar = []Var{
	{0, FlagPadding, ""},                   /* 0 */
	{cpConfig, FlagRO, "config"},           /* 1 */
	{cpAuthEnable, FlagRO, "authenable"},   /* 2 */
	{cpAuthentic, FlagRO, "authentic"},     /* 3 */
	{cpSrcAdr, FlagRO, "srcadr"},           /* 4 */
	{cpSrcPort, FlagRO, "srcport"},         /* 5 */
	{cpDstAdr, FlagRO, "dstadr"},           /* 6 */
	{cpDstPort, FlagRO, "dstport"},         /* 7 */
	{cpLeap, FlagRO, "leap"},               /* 8 */
	{cpHMode, FlagRO, "hmode"},             /* 9 */
	{cpStratum, FlagRO, "stratum"},         /* 10 */
	{cpPPoll, FlagRO, "ppoll"},             /* 11 */
	{cpHPoll, FlagRO, "hpoll"},             /* 12 */
	{cpPrecision, FlagRO, "precision"},     /* 13 */
	{cpRootDelay, FlagRO, "rootdelay"},     /* 14 */
	{cpRootDispersion, FlagRO, "rootdisp"}, /* 15 */
	{cpRefID, FlagRO, "refid"},             /* 16 */
	{cpRefTime, FlagRO, "reftime"},         /* 17 */
	// Placeholder. Reporting of this variable is disabled because
	// leaking it creates a vulnerability.
	{cpOrg, FlagRO, "org"},               /* 18 */
	{cpRec, FlagRO, "rec"},               /* 19 */
	{cpXmt, FlagRO, "xmt"},               /* 20 */
	{cpReach, FlagRO, "reach"},           /* 21 */
	{cpUnreach, FlagRO, "unreach"},       /* 22 */
	{cpTimer, FlagRO, "timer"},           /* 23 */
	{cpDelay, FlagRO, "delay"},           /* 24 */
	{cpOffset, FlagRO, "offset"},         /* 25 */
	{cpJitter, FlagRO, "jitter"},         /* 26 */
	{cpDispersion, FlagRO, "dispersion"}, /* 27 */
	{cpKeyID, FlagRO, "keyid"},           /* 28 */
	{cpFiltDelay, FlagRO, "filtdelay"},   /* 29 */
	{cpFiltOffset, FlagRO, "filtoffset"}, /* 30 */
	{cpPMode, FlagRO, "pmode"},           /* 31 */
	{cpReceived, FlagRO, "received"},     /* 32 */
	{cpSent, FlagRO, "sent"},             /* 33 */
	{cpFiltError, FlagRO, "filtdisp"},    /* 34 */
	{cpFlash, FlagRO, "flash"},           /* 35 */
	{cpTTL, FlagRO, "ttl"},               /* 36 */
	{cpVarList, FlagRO, "peer_var_list"}, /* 37 */
	{cpIn, FlagRO, "in"},                 /* 38 */
	{cpOut, FlagRO, "out"},               /* 39 */
	{cpRate, FlagRO, "headway"},          /* 40 */
	{cpBias, FlagRO, "bias"},             /* 41 */
	{cpSrcHost, FlagRO, "srchost"},       /* 42 */
	{cpTimeRec, FlagRO, "timerec"},       /* 43 */
	{cpTimeReach, FlagRO, "timereach"},   /* 44 */
	{cpBadAuth, FlagRO, "badauth"},       /* 45 */
	{cpBogusOrg, FlagRO, "bogusorg"},     /* 46 */
	{cpOldPkt, FlagRO, "oldpkt"},         /* 47 */
	{cpSelDisp, FlagRO, "seldisp"},       /* 48 */
	{cpSelBroken, FlagRO, "selbroken"},   /* 49 */
	{cpCandidate, FlagRO, "candidate"},   /* 50 */
	{0, FlagEOV, ""},
}

// Peer variables emitted by default.
var defPeerVar = []uint16{
	cpSrcAdr,
	cpSrcPort,
	cpSrcHost,
	cpDstAdr,
	cpDstPort,
	cpOut,
	cpIn,
	cpLeap,
	cpStratum,
	cpPrecision,
	cpRootDelay,
	cpRootDispersion,
	cpRefID,
	cpRefTime,
	cpRec,
	cpReach,
	cpUnreach,
	cpHMode,
	cpPMode,
	cpHPoll,
	cpPPoll,
	cpRate,
	cpFlash,
	cpKeyID,
	cpTTL,
	cpOffset,
	cpDelay,
	cpDispersion,
	cpJitter,
	cpXmt,
	cpBias,
	cpFiltDelay,
	cpFiltOffset,
	cpFiltError,
}

var clockVar = []Var{
	{0, FlagPadding, ""},                  /* 0 */
	{ccName, FlagRO, "name"},              /* 1 */
	{ccTimeCode, FlagRO, "timecode"},      /* 2 */
	{ccPoll, FlagRO, "poll"},              /* 3 */
	{ccNoReply, FlagRO, "noreply"},        /* 4 */
	{ccBadFormat, FlagRO, "badformat"},    /* 5 */
	{ccBadData, FlagRO, "baddata"},        /* 6 */
	{ccFudgeTime1, FlagRO, "fudgetime1"},  /* 7 */
	{ccFudgeTime2, FlagRO, "fudgetime2"},  /* 8 */
	{ccFudgeVal1, FlagRO, "stratum"},      /* 9 */
	{ccFudgeVal2, FlagRO, "refid"},        /* 10 */
	{ccFlags, FlagRO, "flags"},            /* 11 */
	{ccDevice, FlagRO, "device"},          /* 12 */
	{ccVarList, FlagRO, "clock_var_list"}, /* 13 */
	{0, FlagEOV, ""},
}

// Clock variables emitted by default.
var defClockVar = []uint16{
	ccDevice,
	ccName,
	ccTimeCode,
	ccPoll,
	ccNoReply,
	ccBadFormat,
	ccBadData,
	ccFudgeTime1,
	ccFudgeTime2,
	ccFudgeVal1,
	ccFudgeVal2,
	ccFlags,
}

// countVar returns the number of entries before the EOV sentinel.
func countVar(table []Var) int {
	c := 0
	for _, v := range table {
		if v.Flags&FlagEOV != 0 {
			break
		}
		c++
	}
	return c
}

// varName returns the tag part of a descriptor's text, everything up
// to '=' or end-of-string.
func varName(text string) string {
	for i := 0; i < len(text); i++ {
		if text[i] == '=' {
			return text[:i]
		}
	}
	return text
}

// setVar replaces or appends a "name=value" entry in an extension
// table, keyed by the name part. New entries get the next free code.
func setVar(table []Var, text string, flags VarFlag) []Var {
	name := varName(text)
	for i := range table {
		if table[i].Flags&FlagEOV != 0 {
			break
		}
		if varName(table[i].Text) == name {
			table[i].Text = text
			table[i].Flags = flags
			return table
		}
	}
	v := Var{Code: uint16(countVar(table)), Flags: flags, Text: text}
	if n := len(table); n > 0 && table[n-1].Flags&FlagEOV != 0 {
		table = append(table[:n-1], v, table[n-1])
	} else {
		table = append(table, v, Var{Flags: FlagEOV})
	}
	return table
}

// lookupExt retrieves the value of a user-defined variable, or
// ("", false) if the variable has not been set.
func lookupExt(table []Var, tag string) (string, bool) {
	for _, v := range table {
		if v.Flags&FlagEOV != 0 {
			break
		}
		if varName(v.Text) == tag {
			if len(v.Text) > len(tag) && v.Text[len(tag)] == '=' {
				return v.Text[len(tag)+1:], true
			}
			return "", true
		}
	}
	return "", false
}
