package main

import (
	"fmt"
	"net"
	"time"

	timer "github.com/xiaonanln/goTimer"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/config"
	"github.com/tooniverse/groupworld/engine/consts"
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/engine/netutil"
	"github.com/tooniverse/groupworld/engine/post"
	"github.com/tooniverse/groupworld/engine/proto"
	"github.com/tooniverse/groupworld/group"
	"github.com/tooniverse/groupworld/groupstore"
)

type packetQueueItem struct {
	cp      *CoordinatorProxy
	msgtype proto.MsgType
	packet  *netutil.Packet // nil means the coordinator disconnected
}

// StoreServer wires the group store service to the network: it accepts
// coordinator connections and feeds their packets into the one service
// main routine.
type StoreServer struct {
	cfg         *config.GroupStoreConfig
	listenAddr  string
	service     *groupstore.Service
	packetQueue chan packetQueueItem
}

func newStoreServer(cfg *config.GroupStoreConfig) *StoreServer {
	return &StoreServer{
		cfg:         cfg,
		listenAddr:  fmt.Sprintf("%s:%d", cfg.BindIp, cfg.BindPort),
		service:     groupstore.NewService(cfg),
		packetQueue: make(chan packetQueueItem, consts.GROUPSTORE_PACKET_QUEUE_SIZE),
	}
}

func (ss *StoreServer) String() string {
	return fmt.Sprintf("StoreServer<%s>", ss.listenAddr)
}

func (ss *StoreServer) run() {
	go netutil.ServeTCPForever(ss.listenAddr, ss)
	ss.service.Start()
	ss.mainRoutine()
}

// mainRoutine is the only goroutine that touches the service state
func (ss *StoreServer) mainRoutine() {
	ticker := time.Tick(consts.SERVICE_TICK_INTERVAL)
	for {
		select {
		case item := <-ss.packetQueue:
			ss.handlePacket(item)
			if item.packet != nil {
				item.packet.Release()
			}
		case <-ticker:
			timer.Tick()
			post.Tick()
		}
	}
}

// ServeTCPConnection handles a fresh coordinator connection
func (ss *StoreServer) ServeTCPConnection(conn net.Conn) {
	cp := newCoordinatorProxy(ss, conn)
	cp.serve()
}

func (ss *StoreServer) handlePacket(item packetQueueItem) {
	cp, pkt := item.cp, item.packet
	if pkt == nil {
		if cp.registered {
			ss.service.UnregisterAI(cp)
		}
		return
	}

	switch item.msgtype {
	case proto.MT_SET_COORDINATOR:
		var req proto.SetCoordinatorReq
		pkt.ReadData(&req)
		cp.districtId = common.DistrictID(req.DistrictId)
		cp.registered = true
		ss.service.RegisterAI(cp)
	case proto.MT_UD_UPDATE_TOON:
		var req proto.ToonInfoMsg
		pkt.ReadData(&req)
		ss.service.UpdateToon(toonInfoFromMsg(&req))
	case proto.MT_UD_TOON_OFFLINE:
		var req proto.ToonOfflineReq
		pkt.ReadData(&req)
		ss.service.ToonOffline(common.AvatarID(req.AvId))
	case proto.MT_UD_AVATAR_CHANGED_ZONE:
		var req proto.UdAvatarChangedZoneReq
		pkt.ReadData(&req)
		ss.service.AvatarChangedZone(common.AvatarID(req.AvId), common.ZoneID(req.NewZone), common.ZoneID(req.OldZone))
	case proto.MT_UD_CREATE_GROUP:
		var req proto.UdCreateGroupReq
		pkt.ReadData(&req)
		ss.service.CreateGroup(common.AvatarID(req.AvId), creationFromMsg(&req.Creation), req.Published)
	case proto.MT_UD_UPDATE_GROUP_SETTINGS:
		var req proto.UdUpdateGroupSettingsReq
		pkt.ReadData(&req)
		ss.service.UpdateGroupSettings(common.AvatarID(req.AvId), req.Options)
	case proto.MT_UD_LEAVE_GROUP:
		var req proto.UdLeaveGroupReq
		pkt.ReadData(&req)
		ss.service.LeaveGroup(common.AvatarID(req.AvId))
	case proto.MT_UD_DISBAND_GROUP:
		var req proto.UdDisbandGroupReq
		pkt.ReadData(&req)
		ss.service.DisbandGroup(common.AvatarID(req.AvId))
	case proto.MT_UD_KICK_PLAYER:
		var req proto.UdKickPlayerReq
		pkt.ReadData(&req)
		ss.service.KickPlayer(common.AvatarID(req.AvId), common.AvatarID(req.TargetAvId))
	case proto.MT_UD_PUBLISH_GROUP:
		var req proto.UdPublishGroupReq
		pkt.ReadData(&req)
		ss.service.PublishGroup(common.AvatarID(req.AvId), req.Publish)
	case proto.MT_UD_REQUEST_GROUP:
		var req proto.UdRequestGroupReq
		pkt.ReadData(&req)
		ss.service.RequestGroup(common.AvatarID(req.AvId), common.AvatarID(req.TargetAvId))
	case proto.MT_UD_RESPOND_TO_INVITE:
		var req proto.UdRespondToInviteReq
		pkt.ReadData(&req)
		ss.service.RespondToInvite(common.AvatarID(req.AvId), common.AvatarID(req.InviterAvId), req.Accept)
	case proto.MT_UD_INVITE_GET_TOON_DATA:
		var req proto.UdInviteGetToonDataReq
		pkt.ReadData(&req)
		ss.service.InviteGetToonData(common.AvatarID(req.AvId), avatarIDsFromWire(req.Candidates))
	case proto.MT_UD_INVITE_QUERY_RESPONSE:
		var req proto.UdInviteQueryResponseReq
		pkt.ReadData(&req)
		ss.service.InviteQueryResponse(common.AvatarID(req.InviterAvId), avatarIDsFromWire(req.Validated))
	case proto.MT_UD_DISBAND_TOON_GROUP:
		var req proto.UdDisbandToonGroupReq
		pkt.ReadData(&req)
		ss.service.DisbandToonGroup(common.AvatarID(req.AvId), group.Response(req.Reason))
	case proto.MT_UD_ANNOUNCE_BATTLE:
		var req proto.UdAnnounceBattleReq
		pkt.ReadData(&req)
		ss.service.AnnounceBattle(common.AvatarID(req.AvId))
	case proto.MT_UD_ASK_FOR_GROUP_INFO:
		var req proto.UdAskForGroupInfoReq
		pkt.ReadData(&req)
		ss.service.AskForGroupInfo(common.AvatarID(req.AvId), common.GroupID(req.GroupId))
	case proto.MT_UD_MOD_FORCE_DISBAND:
		var req proto.UdModForceDisbandReq
		pkt.ReadData(&req)
		ss.service.ModForceDisband(common.AvatarID(req.AvId), common.AvatarID(req.TargetAvId))
	default:
		gwlog.TraceError("%s: unknown msgtype %d from %s", ss, item.msgtype, cp)
	}
}

func toonInfoFromMsg(msg *proto.ToonInfoMsg) groupstore.ToonInfo {
	return groupstore.ToonInfo{
		AvId:        common.AvatarID(msg.AvId),
		Name:        msg.Name,
		ZoneId:      common.ZoneID(msg.ZoneId),
		DistrictId:  common.DistrictID(msg.DistrictId),
		Hp:          msg.Hp,
		MaxHp:       msg.MaxHp,
		Level:       msg.Level,
		AccessLevel: msg.AccessLevel,
	}
}

func creationFromMsg(msg *proto.CreationMsg) group.Creation {
	return group.Creation{
		Type:    group.Type(msg.Type),
		Options: msg.Options,
		Size:    msg.Size,
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
