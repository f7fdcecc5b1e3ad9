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

package mru

import (
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timekeep/timekeep/ntp/control"
)

func ap(i int) netip.AddrPort {
	return netip.MustParseAddrPort(fmt.Sprintf("198.51.100.%d:123", i))
}

func ts(sec uint32) control.LFP {
	return control.NewLFP(sec, 0)
}

func TestObserveOrdering(t *testing.T) {
	l := NewList(10)
	l.Observe(ap(1), ts(100), 0x23, 0, nil)
	l.Observe(ap(2), ts(101), 0x23, 0, nil)
	l.Observe(ap(3), ts(102), 0x23, 0, nil)

	require.Equal(t, 3, l.Len())
	require.Equal(t, ap(1), l.Oldest().Addr)

	// walking newer-ward visits insertion order
	e := l.Oldest()
	var seen []netip.AddrPort
	for e != nil {
		seen = append(seen, e.Addr)
		e = l.Newer(e)
	}
	require.Equal(t, []netip.AddrPort{ap(1), ap(2), ap(3)}, seen)
}

func TestObserveBumpsToHead(t *testing.T) {
	l := NewList(10)
	l.Observe(ap(1), ts(100), 0x23, 0, nil)
	l.Observe(ap(2), ts(101), 0x23, 0, nil)
	l.Observe(ap(3), ts(102), 0x23, 0, nil)

	l.Observe(ap(1), ts(103), 0x23, 0, nil)

	require.Equal(t, ap(2), l.Oldest().Addr)
	e := l.Lookup(ap(1))
	require.NotNil(t, e)
	require.Equal(t, int64(2), e.Count)
	require.Equal(t, ts(100), e.First)
	require.Equal(t, ts(103), e.Last)
	require.Nil(t, l.Newer(e), "bumped entry is the newest")
	require.Equal(t, uint64(1), l.Exists)
}

func TestRecycleWhenFull(t *testing.T) {
	l := NewList(3)
	for i := 1; i <= 3; i++ {
		l.Observe(ap(i), ts(uint32(100+i)), 0x23, 0, nil)
	}
	l.Observe(ap(4), ts(200), 0x23, 0, nil)

	require.Equal(t, 3, l.Len())
	require.Nil(t, l.Lookup(ap(1)), "oldest was recycled")
	require.NotNil(t, l.Lookup(ap(4)))
	require.Equal(t, ap(2), l.Oldest().Addr)
	require.Equal(t, uint64(1), l.RecycleFull)
	require.Equal(t, uint64(3), l.Peak)
}

func TestLookupUnknown(t *testing.T) {
	l := NewList(3)
	require.Nil(t, l.Lookup(ap(9)))
	require.Nil(t, l.Oldest())
}
