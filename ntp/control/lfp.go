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

package control

import (
	"fmt"
	"time"
)

// SecondsToUnix is the difference between the NTP epoch (1900) and the
// Unix epoch (1970) in seconds.
const SecondsToUnix = int64(2208988800)

// LFP is a 64-bit NTP fixed-point timestamp: 32 bits of seconds since
// 1900 UTC followed by 32 bits of fraction.
type LFP uint64

// NewLFP builds an LFP from integer and fractional parts.
func NewLFP(seconds, fraction uint32) LFP {
	return LFP(uint64(seconds)<<32 | uint64(fraction))
}

// LFPFromTime converts Unix time to an LFP timestamp.
func LFPFromTime(t time.Time) LFP {
	nsec := t.UnixNano() + SecondsToUnix*time.Second.Nanoseconds()
	sec := nsec / time.Second.Nanoseconds()
	frac := (nsec - sec*time.Second.Nanoseconds()) << 32 / time.Second.Nanoseconds()
	return NewLFP(uint32(sec), uint32(frac))
}

// Uint returns the integer (seconds) part.
func (l LFP) Uint() uint32 {
	return uint32(l >> 32)
}

// Frac returns the fractional part.
func (l LFP) Frac() uint32 {
	return uint32(l)
}

// Sub returns the difference l - other, wrapping like the fixed-point
// arithmetic it models.
func (l LFP) Sub(other LFP) LFP {
	return LFP(uint64(l) - uint64(other))
}

// Time converts the timestamp back to Unix time.
func (l LFP) Time() time.Time {
	secs := int64(l.Uint()) - SecondsToUnix
	nanos := (int64(l.Frac()) * time.Second.Nanoseconds()) >> 32
	return time.Unix(secs, nanos)
}

// String renders the timestamp the way mode 6 responses do.
func (l LFP) String() string {
	return fmt.Sprintf("0x%08x.%08x", l.Uint(), l.Frac())
}

// ParseLFP parses the 0x%08x.%08x form produced by String.
func ParseLFP(s string) (LFP, error) {
	var i, f uint32
	if _, err := fmt.Sscanf(s, "0x%08x.%08x", &i, &f); err != nil {
		return 0, err
	}
	return NewLFP(i, f), nil
}
