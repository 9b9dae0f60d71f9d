package transport

import (
	"encoding/binary"
	"fmt"
)

// USBTMC bulk message IDs
const (
	MsgDevDepMsgOut        = 0x01
	MsgRequestDevDepMsgIn  = 0x02
	MsgDevDepMsgIn         = 0x02
	MsgVendorSpecificOut   = 0x7E
	MsgRequestVendorSpecIn = 0x7F
)

// Transfer attribute bits
const (
	AttrEOM          = 0x01 // last transfer of a message
	AttrTermCharEnab = 0x02 // device may stop at TermChar (REQUEST_DEV_DEP_MSG_IN)
)

// HeaderSize is the fixed bulk header length.
const HeaderSize = 12

// USBTMCProtocol handles encoding/decoding of USBTMC bulk messages. It owns
// the rolling bTag, so one protocol value belongs to one session.
type USBTMCProtocol struct {
	tag byte
}

// NewUSBTMCProtocol creates a protocol handler.
func NewUSBTMCProtocol() *USBTMCProtocol {
	return &USBTMCProtocol{}
}

// nextTag returns the next bTag; 0 is not a valid tag.
func (p *USBTMCProtocol) nextTag() byte {
	p.tag++
	if p.tag == 0 {
		p.tag = 1
	}
	return p.tag
}

// Tag returns the most recently issued bTag.
func (p *USBTMCProtocol) Tag() byte {
	return p.tag
}

func header(msgID, tag byte, size uint32, attr, term byte) []byte {
	h := make([]byte, HeaderSize)
	h[0] = msgID
	h[1] = tag
	h[2] = ^tag
	binary.LittleEndian.PutUint32(h[4:8], size)
	h[8] = attr
	h[9] = term
	return h
}

// EncodeDevDepMsgOut builds a DEV_DEP_MSG_OUT transfer carrying data, padded
// to a multiple of four bytes.
func (p *USBTMCProtocol) EncodeDevDepMsgOut(data []byte, eom bool) []byte {
	var attr byte
	if eom {
		attr = AttrEOM
	}
	msg := header(MsgDevDepMsgOut, p.nextTag(), uint32(len(data)), attr, 0)
	msg = append(msg, data...)
	for len(msg)%4 != 0 {
		msg = append(msg, 0)
	}
	return msg
}

// EncodeRequestDevDepMsgIn asks the device to send up to maxSize bytes. When
// termChar is non-zero the device may end the transfer early on it.
func (p *USBTMCProtocol) EncodeRequestDevDepMsgIn(maxSize uint32, termChar byte) []byte {
	var attr byte
	if termChar != 0 {
		attr = AttrTermCharEnab
	}
	return header(MsgRequestDevDepMsgIn, p.nextTag(), maxSize, attr, termChar)
}

// DevDepMsgIn is a decoded device response header.
type DevDepMsgIn struct {
	Tag          byte
	TransferSize int
	EOM          bool
}

// DecodeDevDepMsgIn parses a DEV_DEP_MSG_IN header and returns the payload
// bytes present in resp. The payload may be shorter than TransferSize when
// the transfer spans several reads.
func (p *USBTMCProtocol) DecodeDevDepMsgIn(resp []byte) (DevDepMsgIn, []byte, error) {
	if len(resp) < HeaderSize {
		return DevDepMsgIn{}, nil, fmt.Errorf("response too short: %d bytes", len(resp))
	}
	if resp[0] != MsgDevDepMsgIn {
		return DevDepMsgIn{}, nil, fmt.Errorf("invalid message ID: 0x%02X", resp[0])
	}
	if resp[1] != ^resp[2] {
		return DevDepMsgIn{}, nil, fmt.Errorf("corrupt bTag 0x%02X/0x%02X", resp[1], resp[2])
	}
	if resp[1] != p.tag {
		return DevDepMsgIn{}, nil, fmt.Errorf("bTag mismatch: got 0x%02X, want 0x%02X", resp[1], p.tag)
	}

	h := DevDepMsgIn{
		Tag:          resp[1],
		TransferSize: int(binary.LittleEndian.Uint32(resp[4:8])),
		EOM:          resp[8]&AttrEOM != 0,
	}
	payload := resp[HeaderSize:]
	if len(payload) > h.TransferSize {
		payload = payload[:h.TransferSize]
	}
	return h, payload, nil
}

// EncodeDevDepMsgIn builds a device side response. Used by loopback tests.
func EncodeDevDepMsgIn(tag byte, data []byte, eom bool) []byte {
	var attr byte
	if eom {
		attr = AttrEOM
	}
	msg := header(MsgDevDepMsgIn, tag, uint32(len(data)), attr, 0)
	msg = append(msg, data...)
	for len(msg)%4 != 0 {
		msg = append(msg, 0)
	}
	return msg
}
