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
	"fmt"

	"github.com/shirou/gopsutil/host"
	log "github.com/sirupsen/logrus"
)

// HostState is a SystemState whose processor and system fields come
// from the host, with everything else mutated in place by the daemon.
type HostState struct {
	Snap SystemSnapshot
}

// NewHostState fills the platform fields the way uname would.
func NewHostState(version string) *HostState {
	h := &HostState{}
	h.Snap.Version = version
	info, err := host.Info()
	if err != nil {
		log.Warningf("failed to read host info: %v", err)
		return h
	}
	h.Snap.Processor = info.KernelArch
	h.Snap.System = fmt.Sprintf("%s/%s", info.OS, info.KernelVersion)
	return h
}

// Snapshot returns the current snapshot.
func (h *HostState) Snapshot() *SystemSnapshot {
	return &h.Snap
}

// ClearEvents resets the system event counter.
func (h *HostState) ClearEvents() {
	h.Snap.NumEvents = 0
}

// BumpRestricted counts a restricted request.
func (h *HostState) BumpRestricted() {
	h.Snap.SSRestricted++
}
