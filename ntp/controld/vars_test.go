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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarTablesIndexByCode(t *testing.T) {
	// emitters index tables by code, so position must equal code
	for i, v := range sysVar {
		if v.Flags&(FlagPadding|FlagEOV) != 0 {
			continue
		}
		require.Equal(t, uint16(i), v.Code, "sys_var[%d] %q", i, v.Text)
	}
	for i, v := range peerVar {
		if v.Flags&(FlagPadding|FlagEOV) != 0 {
			continue
		}
		require.Equal(t, uint16(i), v.Code, "peer_var[%d] %q", i, v.Text)
	}
	for i, v := range clockVar {
		if v.Flags&(FlagPadding|FlagEOV) != 0 {
			continue
		}
		require.Equal(t, uint16(i), v.Code, "clock_var[%d] %q", i, v.Text)
	}
}

func TestVarTableCounts(t *testing.T) {
	require.Equal(t, csMaxCode+1, countVar(sysVar))
	require.Equal(t, cpMaxCode+1, countVar(peerVar))
	require.Equal(t, ccMaxCode+1, countVar(clockVar))
}

func TestSetVarAppendAndReplace(t *testing.T) {
	var table []Var

	table = setVar(table, "campus=main", FlagRO)
	require.Equal(t, 2, len(table)) // entry + sentinel
	require.Equal(t, "campus=main", table[0].Text)
	require.Equal(t, uint16(0), table[0].Code)

	table = setVar(table, "rack=r1", FlagRO)
	require.Equal(t, uint16(1), table[1].Code)

	// same name replaces in place, keeping the code
	table = setVar(table, "campus=backup", FlagRW)
	require.Equal(t, "campus=backup", table[0].Text)
	require.Equal(t, FlagRW, table[0].Flags)
	require.Equal(t, uint16(0), table[0].Code)
	require.Equal(t, 3, len(table))
}

func TestLookupExt(t *testing.T) {
	var table []Var
	table = setVar(table, "campus=main", FlagRO)
	table = setVar(table, "flagonly", FlagRO)

	val, ok := lookupExt(table, "campus")
	require.True(t, ok)
	require.Equal(t, "main", val)

	val, ok = lookupExt(table, "flagonly")
	require.True(t, ok)
	require.Empty(t, val)

	_, ok = lookupExt(table, "nope")
	require.False(t, ok)
}

func TestBuiltinWinsOverExtension(t *testing.T) {
	h := newHarness()
	h.r.SetSysVar("stratum=999", FlagDef|FlagRO)

	h.process(buildRequest(2, 0, []byte("stratum")))
	text := string(h.allData())
	require.Contains(t, text, "stratum=2")
	require.NotContains(t, text, "999")
}
