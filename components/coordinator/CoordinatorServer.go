package main

import (
	"fmt"
	"net"
	"time"

	timer "github.com/xiaonanln/goTimer"
	kcp "github.com/xtaci/kcp-go"

	"github.com/tooniverse/groupworld/coordinator"
	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/config"
	"github.com/tooniverse/groupworld/engine/consts"
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/engine/gwutils"
	"github.com/tooniverse/groupworld/engine/netutil"
	"github.com/tooniverse/groupworld/engine/post"
	"github.com/tooniverse/groupworld/engine/proto"
	"github.com/tooniverse/groupworld/group"
)

type serverPacketItem struct {
	client         *ClientProxy    // nil for store events
	msgtype        proto.MsgType
	packet         *netutil.Packet // nil means disconnect
	storeConnected bool
}

// CoordinatorServer wires the coordinator service to the network: it
// serves clients over TCP and KCP, keeps the store connection alive and
// feeds every inbound packet into the one service main routine.
type CoordinatorServer struct {
	cfg         *config.CoordinatorConfig
	listenAddr  string
	service     *coordinator.Service
	storeClient *StoreClient
	packetQueue chan serverPacketItem
}

func newCoordinatorServer(cfg *config.CoordinatorConfig) *CoordinatorServer {
	cs := &CoordinatorServer{
		cfg:         cfg,
		listenAddr:  fmt.Sprintf("%s:%d", cfg.Ip, cfg.Port),
		packetQueue: make(chan serverPacketItem, consts.COORDINATOR_PACKET_QUEUE_SIZE),
	}
	cs.storeClient = newStoreClient(cs)
	cs.service = coordinator.NewService(cfg, cs.storeClient)
	return cs
}

func (cs *CoordinatorServer) String() string {
	return fmt.Sprintf("CoordinatorServer<%d|%s>", cs.cfg.DistrictId, cs.listenAddr)
}

func (cs *CoordinatorServer) run() {
	gwlog.Infof("%s: compress connection: %v, serve KCP: %v", cs, cs.cfg.CompressConnection, cs.cfg.ServeKCP)

	go netutil.ServeTCPForever(cs.listenAddr, cs)
	if cs.cfg.ServeKCP {
		go cs.serveKCP(cs.listenAddr)
	}
	go cs.storeClient.run()
	cs.mainRoutine()
}

// mainRoutine is the only goroutine that touches the service state
func (cs *CoordinatorServer) mainRoutine() {
	ticker := time.Tick(consts.SERVICE_TICK_INTERVAL)
	for {
		select {
		case item := <-cs.packetQueue:
			cs.handleItem(item)
			if item.packet != nil {
				item.packet.Release()
			}
		case <-ticker:
			timer.Tick()
			post.Tick()
		}
	}
}

// ServeTCPConnection handles a fresh client connection
func (cs *CoordinatorServer) ServeTCPConnection(conn net.Conn) {
	tcpConn := conn.(*net.TCPConn)
	tcpConn.SetWriteBuffer(consts.CLIENT_PROXY_WRITE_BUFFER_SIZE)
	tcpConn.SetReadBuffer(consts.CLIENT_PROXY_READ_BUFFER_SIZE)
	tcpConn.SetNoDelay(consts.CLIENT_PROXY_SET_TCP_NO_DELAY)

	cs.handleClientConnection(conn)
}

func (cs *CoordinatorServer) serveKCP(addr string) {
	kcpListener, err := kcp.ListenWithOptions(addr, nil, 10, 3)
	if err != nil {
		gwlog.Panic(err)
	}

	gwlog.Infof("Listening on KCP: %s ...", addr)

	gwutils.RepeatUntilPanicless(func() {
		for {
			conn, err := kcpListener.AcceptKCP()
			if err != nil {
				gwlog.Panic(err)
			}
			go cs.handleKCPConn(conn)
		}
	})
}

func (cs *CoordinatorServer) handleKCPConn(conn *kcp.UDPSession) {
	gwlog.Infof("KCP connection from %s", conn.RemoteAddr())

	conn.SetReadBuffer(consts.CLIENT_PROXY_READ_BUFFER_SIZE)
	conn.SetWriteBuffer(consts.CLIENT_PROXY_WRITE_BUFFER_SIZE)
	// turbo mode per https://github.com/skywind3000/kcp/blob/master/README.en.md#protocol-configuration
	conn.SetStreamMode(true)
	conn.SetWriteDelay(true)
	conn.SetNoDelay(1, 10, 2, 1)
	cs.handleClientConnection(conn)
}

func (cs *CoordinatorServer) handleClientConnection(conn net.Conn) {
	client := newClientProxy(cs, conn)
	client.serve()
}

func (cs *CoordinatorServer) handleItem(item serverPacketItem) {
	if item.client == nil {
		cs.handleStoreItem(item)
		return
	}

	client, pkt := item.client, item.packet
	if pkt == nil {
		if !client.avId.IsNil() {
			cs.service.DetachClient(client.avId)
		}
		return
	}

	if item.msgtype == proto.MT_CLIENT_HELLO {
		var req proto.ClientHelloReq
		pkt.ReadData(&req)
		client.avId = common.AvatarID(req.AvId)
		cs.service.AttachClient(client, coordinator.Avatar{
			AvId:        client.avId,
			Name:        req.Name,
			ZoneId:      common.ZoneID(req.ZoneId),
			Hp:          req.Hp,
			MaxHp:       req.MaxHp,
			Level:       req.Level,
			AccessLevel: req.AccessLevel,
		})
		return
	}

	if client.avId.IsNil() {
		gwlog.Warnf("%s: msgtype %d from client before hello, dropped", cs, item.msgtype)
		return
	}
	avId := client.avId

	switch item.msgtype {
	case proto.MT_CLIENT_ZONE_CHANGED:
		var req proto.ZoneChangedReq
		pkt.ReadData(&req)
		cs.service.AvatarChangedZone(avId, common.ZoneID(req.NewZone))
	case proto.MT_CREATE_GROUP:
		var req proto.CreateGroupReq
		pkt.ReadData(&req)
		creation := group.Creation{
			Type:    group.Type(req.Creation.Type),
			Options: req.Creation.Options,
			Size:    req.Creation.Size,
		}
		cs.service.CreateGroup(avId, creation, req.Published, req.Force)
	case proto.MT_UPDATE_GROUP_SETTINGS:
		var req proto.UpdateGroupSettingsReq
		pkt.ReadData(&req)
		cs.service.UpdateGroupSettings(avId, req.Options)
	case proto.MT_DISBAND_GROUP:
		cs.service.DisbandGroup(avId)
	case proto.MT_LEAVE_GROUP:
		cs.service.LeaveGroup(avId)
	case proto.MT_KICK_PLAYER:
		var req proto.KickPlayerReq
		pkt.ReadData(&req)
		cs.service.KickPlayer(avId, common.AvatarID(req.AvId))
	case proto.MT_INVITE_PLAYER_GET_DNA:
		var req proto.InvitePlayersReq
		pkt.ReadData(&req)
		cs.service.InviteGetToonData(avId, avatarIDsFromWire(req.AvIds))
	case proto.MT_PUBLISH_GROUP:
		var req proto.PublishGroupReq
		pkt.ReadData(&req)
		cs.service.PublishGroup(avId, req.Publish)
	case proto.MT_REQUEST_GO:
		cs.service.RequestGo(avId)
	case proto.MT_RESPOND_TO_GROUP_INVITE:
		var req proto.RespondToInviteReq
		pkt.ReadData(&req)
		cs.service.RespondToInvite(avId, common.AvatarID(req.InviterAvId), req.Accept)
	case proto.MT_REQUEST_GROUP:
		var req proto.RequestGroupReq
		pkt.ReadData(&req)
		cs.service.RequestGroup(avId, common.AvatarID(req.TargetAvId), req.Force)
	case proto.MT_ASK_FOR_GROUP_INFO:
		var req proto.AskForGroupInfoReq
		pkt.ReadData(&req)
		cs.service.AskForGroupInfo(avId, common.GroupID(req.GroupId))
	case proto.MT_MOD_FORCE_DISBAND:
		var req proto.ModForceDisbandReq
		pkt.ReadData(&req)
		cs.service.ModForceDisband(avId, common.AvatarID(req.TargetAvId))
	default:
		gwlog.TraceError("%s: unknown msgtype %d from client %d", cs, item.msgtype, avId)
	}
}

func (cs *CoordinatorServer) handleStoreItem(item serverPacketItem) {
	if item.storeConnected {
		cs.service.HandleStoreConnected()
		return
	}
	pkt := item.packet
	if pkt == nil {
		gwlog.Warnf("%s: store connection lost, waiting for reconnect", cs)
		return
	}

	switch item.msgtype {
	case proto.MT_RECEIVE_ALL_GROUPS:
		var msg proto.ReceiveAllGroupsMsg
		pkt.ReadData(&msg)
		groups := make([]*group.Group, 0, len(msg.Groups))
		for _, fields := range msg.Groups {
			g, err := group.FromStruct(fields)
			if err != nil {
				gwlog.Errorf("%s: bad group struct in broadcast: %v", cs, err)
				continue
			}
			groups = append(groups, g)
		}
		cs.service.ReceiveAllGroups(groups)
	case proto.MT_UPDATE_GROUP:
		var msg proto.UpdateGroupMsg
		pkt.ReadData(&msg)
		g, err := group.FromStruct(msg.Group)
		if err != nil {
			gwlog.Errorf("%s: bad group struct in update: %v", cs, err)
			return
		}
		cs.service.UpdateGroup(avatarIDsFromWire(msg.AvIds), g)
	case proto.MT_GROUP_LEAVE_RESPONSE:
		var msg proto.GroupLeaveMsg
		pkt.ReadData(&msg)
		cs.service.GroupLeaveResponse(common.AvatarID(msg.AvId), group.Response(msg.Reason), msg.Notify)
	case proto.MT_REQUEST_GROUP_CALLBACK:
		var msg proto.RequestGroupCallbackMsg
		pkt.ReadData(&msg)
		cs.service.RequestGroupCallback(common.AvatarID(msg.AvId), group.Response(msg.ErrCode), group.Type(msg.GroupType))
	case proto.MT_RECEIVE_NOTIFICATION:
		var msg proto.NotificationMsg
		pkt.ReadData(&msg)
		cs.service.ReceiveNotification(common.AvatarID(msg.AvId), group.Response(msg.Code), msg.Arg)
	case proto.MT_VALIDATE_INVITED:
		var msg proto.ValidateInvitedReq
		pkt.ReadData(&msg)
		cs.service.ValidateInvited(common.AvatarID(msg.InviterAvId), avatarIDsFromWire(msg.Candidates))
	case proto.MT_RECEIVE_INVITE:
		var msg proto.ReceiveInviteMsg
		pkt.ReadData(&msg)
		cs.service.ReceiveInvite(common.AvatarID(msg.AvId), common.AvatarID(msg.InviterAvId), msg.InviterName, group.Type(msg.GroupType))
	default:
		gwlog.TraceError("%s: unknown msgtype %d from store", cs, item.msgtype)
	}
}

func avatarIDsFromWire(ids []uint32) []common.AvatarID {
	avIds := make([]common.AvatarID, len(ids))
	for i, id := range ids {
		avIds[i] = common.AvatarID(id)
	}
	return avIds
}

func avatarIDsToWire(avIds []common.AvatarID) []uint32 {
	ids := make([]uint32, len(avIds))
	for i, avId := range avIds {
		ids[i] = uint32(avId)
	}
	return ids
}
