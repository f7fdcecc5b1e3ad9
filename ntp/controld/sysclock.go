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
	"crypto/rand"
	"encoding/binary"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timekeep/timekeep/ntp/control"
)

// SystemClock reads the local clock.
type SystemClock struct{}

// Now returns the current time as an NTP timestamp.
func (SystemClock) Now() control.LFP {
	return control.LFPFromTime(time.Now())
}

// CryptoRandom draws from the system CSPRNG.
type CryptoRandom struct{}

// Uint32 returns one random word.
func (CryptoRandom) Uint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Fatalf("system CSPRNG failed: %v", err)
	}
	return binary.BigEndian.Uint32(b[:])
}
