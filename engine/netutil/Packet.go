package netutil

import (
	"encoding/binary"
	"sync"

	"github.com/tooniverse/groupworld/engine/gwlog"
)

const (
	// MAX_PACKET_SIZE is the max size of a packet including the prepayload
	MAX_PACKET_SIZE = 1 * 1024 * 1024
	// SIZE_FIELD_SIZE is the size of the payload length field
	SIZE_FIELD_SIZE = 4
	// PREPAYLOAD_SIZE is the size of the packet bytes before the payload
	PREPAYLOAD_SIZE = SIZE_FIELD_SIZE
	// MAX_PAYLOAD_LENGTH is the max size of the packet payload
	MAX_PAYLOAD_LENGTH = MAX_PACKET_SIZE - PREPAYLOAD_SIZE
)

var (
	// PACKET_ENDIAN is the byte order of packet payloads
	PACKET_ENDIAN = binary.LittleEndian
	// NETWORK_ENDIAN is the byte order of the payload length field
	NETWORK_ENDIAN = binary.LittleEndian

	packetPool = sync.Pool{
		New: func() interface{} {
			return &Packet{}
		},
	}
)

// Packet is a packet for sending data between groupworld processes
type Packet struct {
	payloadLen uint32
	readCursor uint32
	bytes      [MAX_PACKET_SIZE]byte
}

func allocPacket() *Packet {
	pkt := packetPool.Get().(*Packet)
	if pkt.payloadLen != 0 || pkt.readCursor != 0 {
		gwlog.Panicf("packet must be released before reuse: payloadLen=%d, readCursor=%d", pkt.payloadLen, pkt.readCursor)
	}
	return pkt
}

// NewPacket allocates a new packet from the packet pool
func NewPacket() *Packet {
	return allocPacket()
}

// Release puts the packet back to the packet pool
func (p *Packet) Release() {
	p.payloadLen = 0
	p.readCursor = 0
	packetPool.Put(p)
}

// ClearPayload resets the packet for reuse
func (p *Packet) ClearPayload() {
	p.payloadLen = 0
	p.readCursor = 0
}

// Payload returns the payload bytes of the packet
func (p *Packet) Payload() []byte {
	return p.bytes[PREPAYLOAD_SIZE : PREPAYLOAD_SIZE+p.payloadLen]
}

// GetPayloadLen returns the payload length
func (p *Packet) GetPayloadLen() uint32 {
	return p.payloadLen
}

// SetPayloadLen sets the payload length, used when receiving packets
func (p *Packet) SetPayloadLen(plen uint32) {
	if plen > MAX_PAYLOAD_LENGTH {
		gwlog.Panicf("payload length too long: %d", plen)
	}
	p.payloadLen = plen
}

func (p *Packet) prepareSend() {
	NETWORK_ENDIAN.PutUint32(p.bytes[:SIZE_FIELD_SIZE], p.payloadLen)
}

func (p *Packet) assureRoom(need uint32) {
	if PREPAYLOAD_SIZE+p.payloadLen+need > MAX_PACKET_SIZE {
		gwlog.Panicf("packet overflow: payloadLen=%d, need=%d", p.payloadLen, need)
	}
}

// AppendByte appends one byte to the payload
func (p *Packet) AppendByte(b byte) {
	p.assureRoom(1)
	p.bytes[PREPAYLOAD_SIZE+p.payloadLen] = b
	p.payloadLen++
}

// AppendBool appends one bool to the payload
func (p *Packet) AppendBool(b bool) {
	if b {
		p.AppendByte(1)
	} else {
		p.AppendByte(0)
	}
}

// AppendUint16 appends one uint16 to the payload
func (p *Packet) AppendUint16(v uint16) {
	p.assureRoom(2)
	payloadEnd := PREPAYLOAD_SIZE + p.payloadLen
	PACKET_ENDIAN.PutUint16(p.bytes[payloadEnd:payloadEnd+2], v)
	p.payloadLen += 2
}

// AppendUint32 appends one uint32 to the payload
func (p *Packet) AppendUint32(v uint32) {
	p.assureRoom(4)
	payloadEnd := PREPAYLOAD_SIZE + p.payloadLen
	PACKET_ENDIAN.PutUint32(p.bytes[payloadEnd:payloadEnd+4], v)
	p.payloadLen += 4
}

// AppendUint64 appends one uint64 to the payload
func (p *Packet) AppendUint64(v uint64) {
	p.assureRoom(8)
	payloadEnd := PREPAYLOAD_SIZE + p.payloadLen
	PACKET_ENDIAN.PutUint64(p.bytes[payloadEnd:payloadEnd+8], v)
	p.payloadLen += 8
}

// AppendBytes appends bytes to the payload, without a length prefix
func (p *Packet) AppendBytes(v []byte) {
	bytesLen := uint32(len(v))
	p.assureRoom(bytesLen)
	payloadEnd := PREPAYLOAD_SIZE + p.payloadLen
	copy(p.bytes[payloadEnd:payloadEnd+bytesLen], v)
	p.payloadLen += bytesLen
}

// AppendVarBytes appends bytes to the payload with a length prefix
func (p *Packet) AppendVarBytes(v []byte) {
	p.AppendUint32(uint32(len(v)))
	p.AppendBytes(v)
}

// AppendVarStr appends a string to the payload with a length prefix
func (p *Packet) AppendVarStr(s string) {
	p.AppendVarBytes([]byte(s))
}

// AppendData appends one value to the payload in MessagePack format
func (p *Packet) AppendData(msg interface{}) {
	dataBuf := make([]byte, 0, 256)
	dataBuf, err := MSG_PACKER.PackMsg(msg, dataBuf)
	if err != nil {
		gwlog.Panicf("pack msg failed: %v", err)
	}
	p.AppendVarBytes(dataBuf)
}

// ReadByte reads one byte from the packet
func (p *Packet) ReadByte() byte {
	pos := p.readCursor + PREPAYLOAD_SIZE
	b := p.bytes[pos]
	p.readCursor++
	return b
}

// ReadBool reads one bool from the packet
func (p *Packet) ReadBool() bool {
	return p.ReadByte() != 0
}

// ReadUint16 reads one uint16 from the packet
func (p *Packet) ReadUint16() uint16 {
	pos := p.readCursor + PREPAYLOAD_SIZE
	v := PACKET_ENDIAN.Uint16(p.bytes[pos : pos+2])
	p.readCursor += 2
	return v
}

// ReadUint32 reads one uint32 from the packet
func (p *Packet) ReadUint32() uint32 {
	pos := p.readCursor + PREPAYLOAD_SIZE
	v := PACKET_ENDIAN.Uint32(p.bytes[pos : pos+4])
	p.readCursor += 4
	return v
}

// ReadUint64 reads one uint64 from the packet
func (p *Packet) ReadUint64() uint64 {
	pos := p.readCursor + PREPAYLOAD_SIZE
	v := PACKET_ENDIAN.Uint64(p.bytes[pos : pos+8])
	p.readCursor += 8
	return v
}

// ReadBytes reads bytes of the specified size from the packet
func (p *Packet) ReadBytes(size uint32) []byte {
	pos := p.readCursor + PREPAYLOAD_SIZE
	if pos+size > PREPAYLOAD_SIZE+p.payloadLen {
		gwlog.Panicf("reading %d bytes but only %d left", size, p.payloadLen-p.readCursor)
	}
	b := p.bytes[pos : pos+size]
	p.readCursor += size
	return b
}

// ReadVarBytes reads a length-prefixed byte slice from the packet
func (p *Packet) ReadVarBytes() []byte {
	blen := p.ReadUint32()
	return p.ReadBytes(blen)
}

// ReadVarStr reads a length-prefixed string from the packet
func (p *Packet) ReadVarStr() string {
	return string(p.ReadVarBytes())
}

// ReadData reads one MessagePack value from the packet
func (p *Packet) ReadData(msg interface{}) {
	b := p.ReadVarBytes()
	err := MSG_PACKER.UnpackMsg(b, msg)
	if err != nil {
		gwlog.Panicf("unpack msg failed: %v", err)
	}
}
