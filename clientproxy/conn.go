package clientproxy

import (
	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/engine/netutil"
	"github.com/tooniverse/groupworld/engine/proto"
	"github.com/tooniverse/groupworld/group"
)

// CoordinatorConn is a network-backed Sender speaking the coordinator
// protocol over one connection
type CoordinatorConn struct {
	*proto.GroupConnection
}

// DialCoordinator connects to the district coordinator at host:port
func DialCoordinator(host string, port int, compressed bool) (*CoordinatorConn, error) {
	netconn, err := netutil.ConnectTCP(host, port)
	if err != nil {
		return nil, err
	}
	return &CoordinatorConn{proto.NewGroupConnection(netconn, compressed)}, nil
}

func (c *CoordinatorConn) sendMsg(mt proto.MsgType, payload interface{}) {
	if err := c.SendMsg(mt, payload); err != nil {
		gwlog.Errorf("CoordinatorConn: send msgtype %d failed: %v", mt, err)
	}
}

// Hello introduces the avatar on this connection. Must be the first
// message sent; the coordinator drops everything else until it arrives.
func (c *CoordinatorConn) Hello(avId common.AvatarID, name string, zone common.ZoneID, hp int, maxHp int, level int, accessLevel int) {
	c.sendMsg(proto.MT_CLIENT_HELLO, &proto.ClientHelloReq{
		AvId:        uint32(avId),
		Name:        name,
		ZoneId:      uint32(zone),
		Hp:          hp,
		MaxHp:       maxHp,
		Level:       level,
		AccessLevel: accessLevel,
	})
}

// CreateGroup requests a new group
func (c *CoordinatorConn) CreateGroup(creation group.Creation, published bool, force bool) {
	c.sendMsg(proto.MT_CREATE_GROUP, &proto.CreateGroupReq{
		Creation: proto.CreationMsg{
			Type:    int(creation.Type),
			Options: creation.Options,
			Size:    creation.Size,
		},
		Published: published,
		Force:     force,
	})
}

// UpdateGroupSettings requests an option change
func (c *CoordinatorConn) UpdateGroupSettings(options []int) {
	c.sendMsg(proto.MT_UPDATE_GROUP_SETTINGS, &proto.UpdateGroupSettingsReq{Options: options})
}

// DisbandGroup requests disbanding the own group
func (c *CoordinatorConn) DisbandGroup() {
	c.sendMsg(proto.MT_DISBAND_GROUP, nil)
}

// LeaveGroup requests leaving the own group
func (c *CoordinatorConn) LeaveGroup() {
	c.sendMsg(proto.MT_LEAVE_GROUP, nil)
}

// KickPlayer requests kicking the avatar
func (c *CoordinatorConn) KickPlayer(avId common.AvatarID) {
	c.sendMsg(proto.MT_KICK_PLAYER, &proto.KickPlayerReq{AvId: uint32(avId)})
}

// InviteGetToonData requests inviting the avatars
func (c *CoordinatorConn) InviteGetToonData(avIds []common.AvatarID) {
	ids := make([]uint32, len(avIds))
	for i, avId := range avIds {
		ids[i] = uint32(avId)
	}
	c.sendMsg(proto.MT_INVITE_PLAYER_GET_DNA, &proto.InvitePlayersReq{AvIds: ids})
}

// PublishGroup requests a visibility toggle
func (c *CoordinatorConn) PublishGroup(publish bool) {
	c.sendMsg(proto.MT_PUBLISH_GROUP, &proto.PublishGroupReq{Publish: publish})
}

// RequestGo asks to start the shared encounter
func (c *CoordinatorConn) RequestGo() {
	c.sendMsg(proto.MT_REQUEST_GO, nil)
}

// RespondToInvite answers an invite
func (c *CoordinatorConn) RespondToInvite(inviterAvId common.AvatarID, accept bool) {
	c.sendMsg(proto.MT_RESPOND_TO_GROUP_INVITE, &proto.RespondToInviteReq{
		InviterAvId: uint32(inviterAvId),
		Accept:      accept,
	})
}

// RequestGroup asks to join the target's group
func (c *CoordinatorConn) RequestGroup(targetAvId common.AvatarID, force bool) {
	c.sendMsg(proto.MT_REQUEST_GROUP, &proto.RequestGroupReq{
		TargetAvId: uint32(targetAvId),
		Force:      force,
	})
}

// AskForGroupInfo queries one group
func (c *CoordinatorConn) AskForGroupInfo(groupId common.GroupID) {
	c.sendMsg(proto.MT_ASK_FOR_GROUP_INFO, &proto.AskForGroupInfoReq{GroupId: uint32(groupId)})
}

// ModForceDisband requests a moderator disband
func (c *CoordinatorConn) ModForceDisband(targetAvId common.AvatarID) {
	c.sendMsg(proto.MT_MOD_FORCE_DISBAND, &proto.ModForceDisbandReq{TargetAvId: uint32(targetAvId)})
}

// AvatarChangedZone reports a zone change
func (c *CoordinatorConn) AvatarChangedZone(newZone common.ZoneID) {
	c.sendMsg(proto.MT_CLIENT_ZONE_CHANGED, &proto.ZoneChangedReq{NewZone: uint32(newZone)})
}

// Serve reads coordinator pushes and dispatches them to the proxy until
// the connection fails. Must run in the goroutine that owns the proxy.
func (c *CoordinatorConn) Serve(p *GroupProxy) error {
	for {
		msgtype, pkt, err := c.Recv()
		if err != nil {
			return err
		}
		c.dispatch(p, msgtype, pkt)
		pkt.Release()
	}
}

func (c *CoordinatorConn) dispatch(p *GroupProxy, msgtype proto.MsgType, pkt *netutil.Packet) {
	switch msgtype {
	case proto.MT_RECEIVE_ALL_GROUPS:
		var msg proto.ReceiveAllGroupsMsg
		pkt.ReadData(&msg)
		groups := make([]*group.Group, 0, len(msg.Groups))
		for _, fields := range msg.Groups {
			g, err := group.FromStruct(fields)
			if err != nil {
				gwlog.Errorf("CoordinatorConn: bad group struct in broadcast: %v", err)
				continue
			}
			groups = append(groups, g)
		}
		p.HandleReceiveAllGroups(groups)
	case proto.MT_UPDATE_GROUP:
		var msg proto.UpdateGroupMsg
		pkt.ReadData(&msg)
		g, err := group.FromStruct(msg.Group)
		if err != nil {
			gwlog.Errorf("CoordinatorConn: bad group struct in update: %v", err)
			return
		}
		p.HandleUpdateGroup(g)
	case proto.MT_GROUP_LEAVE_RESPONSE:
		var msg proto.GroupLeaveMsg
		pkt.ReadData(&msg)
		p.HandleGroupLeaveResponse(group.Response(msg.Reason), msg.Notify)
	case proto.MT_REQUEST_GROUP_CALLBACK:
		var msg proto.RequestGroupCallbackMsg
		pkt.ReadData(&msg)
		p.HandleRequestGroupCallback(group.Response(msg.ErrCode), group.Type(msg.GroupType))
	case proto.MT_RECEIVE_NOTIFICATION:
		var msg proto.NotificationMsg
		pkt.ReadData(&msg)
		p.HandleReceiveNotification(group.Response(msg.Code), msg.Arg)
	case proto.MT_RECEIVE_INVITE:
		var msg proto.ReceiveInviteMsg
		pkt.ReadData(&msg)
		p.HandleReceiveInvite(common.AvatarID(msg.InviterAvId), msg.InviterName, group.Type(msg.GroupType))
	case proto.MT_MANAGER_RELOADED:
		p.HandleManagerReloaded()
	default:
		gwlog.TraceError("CoordinatorConn: unknown msgtype %d", msgtype)
	}
}
