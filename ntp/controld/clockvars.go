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

// putClock outputs one refclock variable by code. mustPut forces
// emission of values the driver did not report, as explicit requests
// expect an answer.
func (ctx *response) putClock(code uint16, cs *RefclockStat, mustPut bool) {
	switch code {

	case ccName:
		if cs.Name == "" {
			if mustPut {
				ctx.putStr(clockVar[ccName].Text, "")
			}
		} else {
			ctx.putStr(clockVar[ccName].Text, cs.Name)
		}

	case ccTimeCode:
		ctx.putStr(clockVar[ccTimeCode].Text, cs.TimeCode)

	case ccPoll:
		ctx.putUint(clockVar[ccPoll].Text, cs.Polls)

	case ccNoReply:
		ctx.putUint(clockVar[ccNoReply].Text, cs.NoResponse)

	case ccBadFormat:
		ctx.putUint(clockVar[ccBadFormat].Text, cs.BadFormat)

	case ccBadData:
		ctx.putUint(clockVar[ccBadData].Text, cs.BadData)

	case ccFudgeTime1:
		if mustPut || cs.HaveFlags&ClkHaveTime1 != 0 {
			ctx.putDbl(clockVar[ccFudgeTime1].Text, cs.FudgeTime1*1e3)
		}

	case ccFudgeTime2:
		if mustPut || cs.HaveFlags&ClkHaveTime2 != 0 {
			ctx.putDbl(clockVar[ccFudgeTime2].Text, cs.FudgeTime2*1e3)
		}

	case ccFudgeVal1:
		if mustPut || cs.HaveFlags&ClkHaveVal1 != 0 {
			ctx.putInt(clockVar[ccFudgeVal1].Text, int64(cs.FudgeVal1))
		}

	case ccFudgeVal2:
		if mustPut || cs.HaveFlags&ClkHaveVal2 != 0 {
			if cs.FudgeVal1 > 1 {
				ctx.putAdr(clockVar[ccFudgeVal2].Text, cs.FudgeVal2, invalidAddrPort)
			} else {
				ctx.putRefID(clockVar[ccFudgeVal2].Text, cs.FudgeVal2)
			}
		}

	case ccFlags:
		ctx.putUint(clockVar[ccFlags].Text, uint64(cs.Flags))

	case ccDevice:
		if cs.Desc == "" {
			if mustPut {
				ctx.putStr(clockVar[ccDevice].Text, "")
			}
		} else {
			ctx.putStr(clockVar[ccDevice].Text, cs.Desc)
		}

	case ccVarList:
		ctx.putVarList(clockVar[ccVarList].Text, clockVar, cs.KV)
	}
}
