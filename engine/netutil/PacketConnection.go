package netutil

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/xiaonanln/netconnutil"

	"github.com/tooniverse/groupworld/engine/consts"
	"github.com/tooniverse/groupworld/engine/gwioutil"
	"github.com/tooniverse/groupworld/engine/gwlog"
)

// PacketConnection is a connection that sends and receives data packets upon a network stream connection
type PacketConnection struct {
	conn Connection
}

// NewPacketConnection creates a packet connection based on a network connection.
// The connection is wrapped so that temporary errors are retried, payloads are
// optionally snappy-compressed and reads/writes are buffered.
func NewPacketConnection(_conn net.Conn, compressed bool) *PacketConnection {
	_conn = netconnutil.NewNoTempErrorConn(_conn)
	var conn Connection = NetConn{_conn}
	if compressed {
		conn = netconnutil.NewSnappyConn(conn)
	}
	conn = netconnutil.NewBufferedConn(conn, consts.BUFFERED_READ_BUFFSIZE, consts.BUFFERED_WRITE_BUFFSIZE)
	return &PacketConnection{conn: conn}
}

// NewPacket allocates a new packet (usually for sending)
func (pc *PacketConnection) NewPacket() *Packet {
	return NewPacket()
}

// SendPacket sends the packet to the remote
func (pc *PacketConnection) SendPacket(packet *Packet) error {
	if consts.DEBUG_PACKETS {
		gwlog.Debugf("%s SEND PACKET: %v", pc, packet.bytes[:PREPAYLOAD_SIZE+packet.GetPayloadLen()])
	}
	packet.prepareSend()
	err := gwioutil.WriteAll(pc.conn, packet.bytes[:PREPAYLOAD_SIZE+packet.GetPayloadLen()])
	return errors.Wrap(err, "send packet failed")
}

// Flush flushes the underlying connection buffers
func (pc *PacketConnection) Flush() error {
	return pc.conn.Flush()
}

// RecvPacket receives the next packet, blocking until one arrives
func (pc *PacketConnection) RecvPacket() (*Packet, error) {
	packet := allocPacket()

	payloadLenBuf := packet.bytes[:SIZE_FIELD_SIZE]
	err := gwioutil.ReadAll(pc.conn, payloadLenBuf)
	if err != nil {
		packet.Release()
		return nil, errors.Wrap(err, "recv packet failed")
	}

	payloadLen := NETWORK_ENDIAN.Uint32(payloadLenBuf)
	if payloadLen > MAX_PAYLOAD_LENGTH {
		packet.Release()
		return nil, errors.Errorf("packet payload too large: %d", payloadLen)
	}

	err = gwioutil.ReadAll(pc.conn, packet.bytes[PREPAYLOAD_SIZE:PREPAYLOAD_SIZE+payloadLen])
	if err != nil {
		packet.Release()
		return nil, errors.Wrap(err, "recv packet failed")
	}

	packet.SetPayloadLen(payloadLen)
	return packet, nil
}

// Close closes the connection
func (pc *PacketConnection) Close() error {
	return pc.conn.Close()
}

// RemoteAddr returns the remote address
func (pc *PacketConnection) RemoteAddr() net.Addr {
	return pc.conn.RemoteAddr()
}

// LocalAddr returns the local address
func (pc *PacketConnection) LocalAddr() net.Addr {
	return pc.conn.LocalAddr()
}

func (pc *PacketConnection) String() string {
	return fmt.Sprintf("[%s >>> %s]", pc.LocalAddr(), pc.RemoteAddr())
}
