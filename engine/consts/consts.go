package consts

import "time"

// Tunable constants of groupworld processes
const (
	// DEBUG_PACKETS prints the send/recv of every packet when enabled
	DEBUG_PACKETS = false

	// SERVICE_TICK_INTERVAL is the tick interval of service main loops
	SERVICE_TICK_INTERVAL = time.Millisecond * 10

	// GROUPSTORE_PACKET_QUEUE_SIZE is the packet queue size of the group store service
	GROUPSTORE_PACKET_QUEUE_SIZE = 10000
	// COORDINATOR_PACKET_QUEUE_SIZE is the packet queue size of coordinator services
	COORDINATOR_PACKET_QUEUE_SIZE = 10000

	// BUFFERED_READ_BUFFSIZE is the size of read buffers on connections
	BUFFERED_READ_BUFFSIZE = 16384
	// BUFFERED_WRITE_BUFFSIZE is the size of write buffers on connections
	BUFFERED_WRITE_BUFFSIZE = 16384

	// CLIENT_PROXY_READ_BUFFER_SIZE is the TCP read buffer size of client connections
	CLIENT_PROXY_READ_BUFFER_SIZE = 16384
	// CLIENT_PROXY_WRITE_BUFFER_SIZE is the TCP write buffer size of client connections
	CLIENT_PROXY_WRITE_BUFFER_SIZE = 16384
	// CLIENT_PROXY_SET_TCP_NO_DELAY enables TCP_NODELAY on client connections
	CLIENT_PROXY_SET_TCP_NO_DELAY = true

	// STORE_CLIENT_RECONNECT_INTERVAL is the wait before the coordinator redials the group store
	STORE_CLIENT_RECONNECT_INTERVAL = time.Second * 3

	// MAX_INVITES_PER_REQUEST caps the candidate list of one invite request
	MAX_INVITES_PER_REQUEST = 8
)
