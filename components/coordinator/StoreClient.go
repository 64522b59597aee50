package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/tooniverse/groupworld/coordinator"
	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/config"
	"github.com/tooniverse/groupworld/engine/consts"
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/engine/netutil"
	"github.com/tooniverse/groupworld/engine/proto"
	"github.com/tooniverse/groupworld/group"
)

// StoreClient keeps the connection to the group store alive and implements
// coordinator.StorePeer over it. Messages sent while the connection is
// down are dropped; the store's next full broadcast repairs the cache.
type StoreClient struct {
	owner *CoordinatorServer

	connLock sync.Mutex
	conn     *proto.GroupConnection
}

func newStoreClient(owner *CoordinatorServer) *StoreClient {
	return &StoreClient{owner: owner}
}

func (sc *StoreClient) String() string {
	return fmt.Sprintf("StoreClient<%d>", sc.owner.cfg.DistrictId)
}

// run dials the store and serves the connection, redialing forever
func (sc *StoreClient) run() {
	for {
		err := sc.serveStoreConnection()
		gwlog.Errorf("%s: store connection lost: %v, reconnecting after %s", sc, err, consts.STORE_CLIENT_RECONNECT_INTERVAL)
		time.Sleep(consts.STORE_CLIENT_RECONNECT_INTERVAL)
	}
}

func (sc *StoreClient) serveStoreConnection() error {
	storeCfg := config.GetGroupStore()
	netconn, err := netutil.ConnectTCP(storeCfg.Ip, storeCfg.Port)
	if err != nil {
		return err
	}

	conn := proto.NewGroupConnection(netconn, false)
	defer conn.Close()

	err = conn.SendMsg(proto.MT_SET_COORDINATOR, &proto.SetCoordinatorReq{
		DistrictId: uint32(sc.owner.cfg.DistrictId),
	})
	if err != nil {
		return err
	}

	sc.setConn(conn)
	defer func() {
		sc.setConn(nil)
		sc.owner.packetQueue <- serverPacketItem{} // store disconnect event
	}()
	gwlog.Infof("%s: connected to group store %s:%d", sc, storeCfg.Ip, storeCfg.Port)
	sc.owner.packetQueue <- serverPacketItem{storeConnected: true}

	for {
		msgtype, pkt, err := conn.Recv()
		if err != nil {
			return err
		}
		sc.owner.packetQueue <- serverPacketItem{msgtype: msgtype, packet: pkt}
	}
}

func (sc *StoreClient) setConn(conn *proto.GroupConnection) {
	sc.connLock.Lock()
	sc.conn = conn
	sc.connLock.Unlock()
}

func (sc *StoreClient) getConn() *proto.GroupConnection {
	sc.connLock.Lock()
	defer sc.connLock.Unlock()
	return sc.conn
}

func (sc *StoreClient) sendMsg(mt proto.MsgType, payload interface{}) {
	conn := sc.getConn()
	if conn == nil {
		gwlog.Debugf("%s: store not connected, msgtype %d dropped", sc, mt)
		return
	}
	if err := conn.SendMsg(mt, payload); err != nil {
		gwlog.Errorf("%s: send msgtype %d failed: %v", sc, mt, err)
	}
}

// UpdateToon pushes the presence record of the avatar
func (sc *StoreClient) UpdateToon(av *coordinator.Avatar) {
	sc.sendMsg(proto.MT_UD_UPDATE_TOON, &proto.ToonInfoMsg{
		AvId:        uint32(av.AvId),
		Name:        av.Name,
		ZoneId:      uint32(av.ZoneId),
		DistrictId:  uint32(sc.owner.cfg.DistrictId),
		Hp:          av.Hp,
		MaxHp:       av.MaxHp,
		Level:       av.Level,
		AccessLevel: av.AccessLevel,
	})
}

// ToonOffline reports the avatar going offline
func (sc *StoreClient) ToonOffline(avId common.AvatarID) {
	sc.sendMsg(proto.MT_UD_TOON_OFFLINE, &proto.ToonOfflineReq{AvId: uint32(avId)})
}

// AvatarChangedZone relays a zone change
func (sc *StoreClient) AvatarChangedZone(avId common.AvatarID, newZone common.ZoneID, oldZone common.ZoneID) {
	sc.sendMsg(proto.MT_UD_AVATAR_CHANGED_ZONE, &proto.UdAvatarChangedZoneReq{
		AvId:    uint32(avId),
		NewZone: uint32(newZone),
		OldZone: uint32(oldZone),
	})
}

// CreateGroup relays a group creation
func (sc *StoreClient) CreateGroup(avId common.AvatarID, creation group.Creation, published bool) {
	sc.sendMsg(proto.MT_UD_CREATE_GROUP, &proto.UdCreateGroupReq{
		AvId: uint32(avId),
		Creation: proto.CreationMsg{
			Type:    int(creation.Type),
			Options: creation.Options,
			Size:    creation.Size,
		},
		Published: published,
	})
}

// UpdateGroupSettings relays a settings update
func (sc *StoreClient) UpdateGroupSettings(avId common.AvatarID, options []int) {
	sc.sendMsg(proto.MT_UD_UPDATE_GROUP_SETTINGS, &proto.UdUpdateGroupSettingsReq{
		AvId:    uint32(avId),
		Options: options,
	})
}

// DisbandGroup relays a disband of the avatar's own group
func (sc *StoreClient) DisbandGroup(avId common.AvatarID) {
	sc.sendMsg(proto.MT_UD_DISBAND_GROUP, &proto.UdDisbandGroupReq{AvId: uint32(avId)})
}

// DisbandToonGroup relays a forced disband with an explicit reason
func (sc *StoreClient) DisbandToonGroup(avId common.AvatarID, reason group.Response) {
	sc.sendMsg(proto.MT_UD_DISBAND_TOON_GROUP, &proto.UdDisbandToonGroupReq{
		AvId:   uint32(avId),
		Reason: int(reason),
	})
}

// LeaveGroup relays a leave
func (sc *StoreClient) LeaveGroup(avId common.AvatarID) {
	sc.sendMsg(proto.MT_UD_LEAVE_GROUP, &proto.UdLeaveGroupReq{AvId: uint32(avId)})
}

// KickPlayer relays a kick
func (sc *StoreClient) KickPlayer(avId common.AvatarID, targetAvId common.AvatarID) {
	sc.sendMsg(proto.MT_UD_KICK_PLAYER, &proto.UdKickPlayerReq{
		AvId:       uint32(avId),
		TargetAvId: uint32(targetAvId),
	})
}

// PublishGroup relays a publish toggle
func (sc *StoreClient) PublishGroup(avId common.AvatarID, publish bool) {
	sc.sendMsg(proto.MT_UD_PUBLISH_GROUP, &proto.UdPublishGroupReq{
		AvId:    uint32(avId),
		Publish: publish,
	})
}

// RequestGroup relays a direct join request
func (sc *StoreClient) RequestGroup(avId common.AvatarID, targetAvId common.AvatarID) {
	sc.sendMsg(proto.MT_UD_REQUEST_GROUP, &proto.UdRequestGroupReq{
		AvId:       uint32(avId),
		TargetAvId: uint32(targetAvId),
	})
}

// InviteGetToonData starts the invite handshake at the store
func (sc *StoreClient) InviteGetToonData(avId common.AvatarID, candidates []common.AvatarID) {
	sc.sendMsg(proto.MT_UD_INVITE_GET_TOON_DATA, &proto.UdInviteGetToonDataReq{
		AvId:       uint32(avId),
		Candidates: avatarIDsToWire(candidates),
	})
}

// InviteQueryResponse returns the validated invite candidates
func (sc *StoreClient) InviteQueryResponse(avId common.AvatarID, validated []common.AvatarID) {
	sc.sendMsg(proto.MT_UD_INVITE_QUERY_RESPONSE, &proto.UdInviteQueryResponseReq{
		InviterAvId: uint32(avId),
		Validated:   avatarIDsToWire(validated),
	})
}

// RespondToInvite relays an invite response
func (sc *StoreClient) RespondToInvite(avId common.AvatarID, inviterAvId common.AvatarID, accept bool) {
	sc.sendMsg(proto.MT_UD_RESPOND_TO_INVITE, &proto.UdRespondToInviteReq{
		AvId:        uint32(avId),
		InviterAvId: uint32(inviterAvId),
		Accept:      accept,
	})
}

// AskForGroupInfo queries one group from the store
func (sc *StoreClient) AskForGroupInfo(avId common.AvatarID, groupId common.GroupID) {
	sc.sendMsg(proto.MT_UD_ASK_FOR_GROUP_INFO, &proto.UdAskForGroupInfoReq{
		AvId:    uint32(avId),
		GroupId: uint32(groupId),
	})
}

// AnnounceBattle reports that the avatar's group entered its encounter
func (sc *StoreClient) AnnounceBattle(avId common.AvatarID) {
	sc.sendMsg(proto.MT_UD_ANNOUNCE_BATTLE, &proto.UdAnnounceBattleReq{AvId: uint32(avId)})
}

// ModForceDisband relays a moderator disband
func (sc *StoreClient) ModForceDisband(avId common.AvatarID, targetAvId common.AvatarID) {
	sc.sendMsg(proto.MT_UD_MOD_FORCE_DISBAND, &proto.UdModForceDisbandReq{
		AvId:       uint32(avId),
		TargetAvId: uint32(targetAvId),
	})
}
