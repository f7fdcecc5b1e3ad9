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
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Client talks to a mode 6 responder. The main reason it exists is
// keeping track of the sequence number and reassembling fragmented
// responses.
type Client struct {
	Sequence   uint16
	Connection io.ReadWriter
}

// Query sends one request with the given opcode, association id and
// data, and reads response fragments until More clears. Fragment data
// is reassembled by offset.
func (c *Client) Query(opcode uint8, associd uint16, data []byte) (*Msg, error) {
	c.Sequence++
	head := MsgHead{
		VnMode:        VnModeWord(0, VersionMax, Mode),
		REMOp:         opcode & OpMask,
		Sequence:      c.Sequence,
		AssociationID: associd,
		Count:         uint16(len(data)),
	}
	pkt := make([]byte, HeaderLen+len(data))
	head.Encode(pkt)
	copy(pkt[HeaderLen:], data)
	// the data area travels padded to a 32-bit boundary
	for len(pkt)&3 != 0 {
		pkt = append(pkt, 0)
	}
	if _, err := c.Connection.Write(pkt); err != nil {
		return nil, err
	}

	var last *Msg
	assembled := make([]byte, 0, MaxDataLen)
	for {
		buf := make([]byte, 1024)
		n, err := c.Connection.Read(buf)
		if err != nil {
			return nil, err
		}
		m, err := DecodeMsg(buf[:n])
		if err != nil {
			return nil, err
		}
		if m.Sequence != c.Sequence {
			log.Debugf("skipping response with stale sequence %d", m.Sequence)
			continue
		}
		log.Debugf("fragment offset %d count %d", m.Offset, m.Count)
		end := int(m.Offset) + len(m.Data)
		if len(assembled) < end {
			grown := make([]byte, end)
			copy(grown, assembled)
			assembled = grown
		}
		copy(assembled[m.Offset:], m.Data)
		if !m.HasMore() {
			last = m
			break
		}
	}
	if last.HasError() {
		return last, errors.Errorf("responder error code %d", last.ErrorCode())
	}
	last.Data = assembled
	last.Count = uint16(len(assembled))
	return last, nil
}
