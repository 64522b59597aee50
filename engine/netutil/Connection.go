package netutil

import (
	"net"

	"github.com/xiaonanln/netconnutil"
)

// Connection is the connection type accepted by PacketConnection
type Connection interface {
	netconnutil.FlushableConn
}

// NetConn converts a net.Conn to a flushable Connection
type NetConn struct {
	net.Conn
}

// Flush flushes the connection, which is a no-op for plain net.Conn
func (c NetConn) Flush() error {
	return nil
}
