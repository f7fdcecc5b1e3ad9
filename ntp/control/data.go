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
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NormalizeData turns bytes that contain kv ASCII string into a map[string]string
func NormalizeData(data []byte) (map[string]string, error) {
	result := map[string]string{}
	pairs := strings.Split(string(data), ",")
	for _, pair := range pairs {
		split := strings.Split(pair, "=")
		if len(split) != 2 {
			log.Debugf("WARNING: Malformed packet, bad k=v pair '%s'", pair)
			continue
		}
		k := strings.TrimSpace(split[0])
		v := strings.TrimSpace(strings.Trim(split[1], `"`))
		result[k] = v
	}
	if len(result) == 0 {
		return result, errors.Errorf("Malformed packet, no k=v pairs decoded")
	}
	return result, nil
}

// GetAssociations returns the (association id, status word) pairs from
// a readstat response data area.
func (m *Msg) GetAssociations() (map[uint16]*ParsedPeerStatus, error) {
	result := map[uint16]*ParsedPeerStatus{}
	if m.GetOperation() != OpReadStat {
		return result, errors.Errorf("no peer list supported for operation=%d", m.GetOperation())
	}
	for i := 0; i+4 <= int(m.Count); i += 4 {
		id := binary.BigEndian.Uint16(m.Data[i : i+2])
		status := binary.BigEndian.Uint16(m.Data[i+2 : i+4])
		result[id] = ReadPeerStatusWord(status)
	}
	return result, nil
}

// GetAssociationInfo returns parsed normalized variables if present
func (m *Msg) GetAssociationInfo() (map[string]string, error) {
	result := map[string]string{}
	if m.GetOperation() != OpReadVar {
		return result, errors.Errorf("no variables supported for operation=%d", m.GetOperation())
	}
	return NormalizeData(m.Data)
}
