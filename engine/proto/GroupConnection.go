package proto

import (
	"net"

	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"

	"github.com/tooniverse/groupworld/engine/netutil"
)

// GroupConnection wraps a PacketConnection with the groupworld message framing:
// every packet starts with a MsgType followed by one msgpack-encoded payload.
type GroupConnection struct {
	*netutil.PacketConnection
	closed xnsyncutil.AtomicBool
}

// NewGroupConnection creates a GroupConnection upon a network connection
func NewGroupConnection(conn net.Conn, compressed bool) *GroupConnection {
	return &GroupConnection{
		PacketConnection: netutil.NewPacketConnection(conn, compressed),
	}
}

// SendMsg sends one message with an optional msgpack payload
func (gc *GroupConnection) SendMsg(mt MsgType, payload interface{}) error {
	pkt := gc.NewPacket()
	pkt.AppendUint16(uint16(mt))
	if payload != nil {
		pkt.AppendData(payload)
	}
	err := gc.SendPacket(pkt)
	pkt.Release()
	if err != nil {
		return err
	}
	return gc.Flush()
}

// Recv receives the next message; the caller reads the payload from the
// packet with ReadData and must Release it afterwards
func (gc *GroupConnection) Recv() (MsgType, *netutil.Packet, error) {
	pkt, err := gc.RecvPacket()
	if err != nil {
		return MT_INVALID, nil, err
	}
	mt := MsgType(pkt.ReadUint16())
	return mt, pkt, nil
}

// Close closes the connection
func (gc *GroupConnection) Close() error {
	gc.closed.Store(true)
	return gc.PacketConnection.Close()
}

// IsClosed returns if the connection was closed locally
func (gc *GroupConnection) IsClosed() bool {
	return gc.closed.Load()
}
