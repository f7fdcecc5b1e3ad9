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

/*
Package control implements the NTP mode 6 control message wire format
described in NTPv3 RFC-1119 Appendix B (for some reason it's missing
from more recent NTPv4 RFC-5905), as spoken by ntpq and friends.
It is shared by the query client and the control-plane responder.
*/
package control

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Mode is the NTP mode these messages travel in.
const Mode = 6

// Supported versions: the current NTP version and one legacy version.
const (
	VersionMin = 3
	VersionMax = 4
)

// HeaderLen is the fixed control message header size in bytes.
const HeaderLen = 12

// MaxDataLen caps the data area of a single control message.
const MaxDataLen = 468

// MAC length bounds, counting the 4-byte key id plus the digest.
const (
	MinMACLen = 20 // keyid + MD5
	MaxMACLen = 24 // keyid + SHA1
)

// REMOp flag bits and the opcode mask.
const (
	BitResponse = 0x80
	BitError    = 0x40
	BitMore     = 0x20
	OpMask      = 0x1f
)

// Operation codes.
const (
	OpUnspec       = 0
	OpReadStat     = 1
	OpReadVar      = 2
	OpWriteVar     = 3
	OpReadClock    = 4
	OpWriteClock   = 5
	OpConfigure    = 6
	OpReadMRU      = 10
	OpReadOrdListA = 12
	OpReqNonce     = 13
)

// Error codes carried in the high byte of the status word when the
// Error bit is set.
const (
	ErrUnspec     uint8 = 0
	ErrBadFmt     uint8 = 1
	ErrPermission uint8 = 2
	ErrBadOp      uint8 = 3
	ErrBadAssoc   uint8 = 4
	ErrUnknownVar uint8 = 5
	ErrBadValue   uint8 = 6
	ErrRestrict   uint8 = 7
)

// MsgHead is the fixed 12-byte control message header. All multi-byte
// integers are big-endian on the wire.
type MsgHead struct {
	// 0: LI(2bit) Version(3bit) Mode(3bit)
	VnMode uint8
	// 1: Response Error More Operation(5bit)
	REMOp uint8
	// 2-3: Sequence
	Sequence uint16
	// 4-5: Status
	Status uint16
	// 6-7: Association ID
	AssociationID uint16
	// 8-9: Offset of this fragment's data within the whole response
	Offset uint16
	// 10-11: Count of data octets that follow
	Count uint16
}

// Msg is a MsgHead plus the variable-length data area.
type Msg struct {
	MsgHead
	Data []uint8
}

// GetLeap gets the leap indicator from the VnMode word.
func (h MsgHead) GetLeap() int {
	return int(h.VnMode >> 6)
}

// GetVersion gets the version from the VnMode word.
func (h MsgHead) GetVersion() int {
	return int((h.VnMode & 0x38) >> 3)
}

// GetMode gets the mode from the VnMode word.
func (h MsgHead) GetMode() int {
	return int(h.VnMode & 0x7)
}

// IsResponse returns true if the Response bit is set.
func (h MsgHead) IsResponse() bool {
	return h.REMOp&BitResponse != 0
}

// HasError returns true if the Error bit is set.
func (h MsgHead) HasError() bool {
	return h.REMOp&BitError != 0
}

// HasMore returns true if the More bit is set.
func (h MsgHead) HasMore() bool {
	return h.REMOp&BitMore != 0
}

// GetOperation returns the opcode from the REMOp word.
func (h MsgHead) GetOperation() uint8 {
	return h.REMOp & OpMask
}

// ErrorCode returns the error code from the status word high byte.
func (h MsgHead) ErrorCode() uint8 {
	return uint8(h.Status >> 8)
}

// VnModeWord packs leap, version and mode into the first header octet.
func VnModeWord(leap, version, mode uint8) uint8 {
	return leap<<6 | (version&0x7)<<3 | mode&0x7
}

// Decode errors surfaced to callers that care which check failed.
var (
	ErrTooShort      = errors.New("packet shorter than control header")
	ErrNotControl    = errors.New("mode is not control")
	ErrBadVersion    = errors.New("unsupported version")
	ErrInputRME      = errors.New("response, more or error bit set on input")
	ErrInputOffset   = errors.New("nonzero offset on input")
	ErrCountTooLong  = errors.New("data count exceeds packet length")
	ErrDataTruncated = errors.New("data area truncated")
)

// DecodeHead parses and validates the header of an inbound request.
// The checks mirror what a responder must reject before dispatch:
// short packets, responses or fragments echoed back at us, foreign
// versions and counts pointing past the datagram.
func DecodeHead(b []byte) (MsgHead, error) {
	var h MsgHead
	if len(b) < HeaderLen {
		return h, ErrTooShort
	}
	h.VnMode = b[0]
	h.REMOp = b[1]
	h.Sequence = binary.BigEndian.Uint16(b[2:4])
	h.Status = binary.BigEndian.Uint16(b[4:6])
	h.AssociationID = binary.BigEndian.Uint16(b[6:8])
	h.Offset = binary.BigEndian.Uint16(b[8:10])
	h.Count = binary.BigEndian.Uint16(b[10:12])
	if h.GetMode() != Mode {
		return h, ErrNotControl
	}
	if h.REMOp&(BitResponse|BitMore|BitError) != 0 {
		return h, ErrInputRME
	}
	if h.Offset != 0 {
		return h, ErrInputOffset
	}
	if v := h.GetVersion(); v < VersionMin || v > VersionMax {
		return h, ErrBadVersion
	}
	if int(h.Count) > len(b)-HeaderLen {
		return h, ErrCountTooLong
	}
	return h, nil
}

// Encode writes the header into the first HeaderLen bytes of b.
func (h MsgHead) Encode(b []byte) {
	b[0] = h.VnMode
	b[1] = h.REMOp
	binary.BigEndian.PutUint16(b[2:4], h.Sequence)
	binary.BigEndian.PutUint16(b[4:6], h.Status)
	binary.BigEndian.PutUint16(b[6:8], h.AssociationID)
	binary.BigEndian.PutUint16(b[8:10], h.Offset)
	binary.BigEndian.PutUint16(b[10:12], h.Count)
}

// DecodeMsg parses a full message, header plus data area. Unlike
// DecodeHead it accepts responses, so the query client can use it.
func DecodeMsg(b []byte) (*Msg, error) {
	if len(b) < HeaderLen {
		return nil, ErrTooShort
	}
	m := &Msg{}
	m.VnMode = b[0]
	m.REMOp = b[1]
	m.Sequence = binary.BigEndian.Uint16(b[2:4])
	m.Status = binary.BigEndian.Uint16(b[4:6])
	m.AssociationID = binary.BigEndian.Uint16(b[6:8])
	m.Offset = binary.BigEndian.Uint16(b[8:10])
	m.Count = binary.BigEndian.Uint16(b[10:12])
	if int(m.Count) > len(b)-HeaderLen {
		return nil, ErrDataTruncated
	}
	m.Data = b[HeaderLen : HeaderLen+int(m.Count)]
	return m, nil
}
