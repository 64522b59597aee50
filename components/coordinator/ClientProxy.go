package main

import (
	"fmt"
	"net"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/consts"
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/engine/netutil"
	"github.com/tooniverse/groupworld/engine/proto"
	"github.com/tooniverse/groupworld/group"
)

// ClientProxy is the coordinator-side handle of one connected client. Its
// send methods implement coordinator.ClientPeer.
type ClientProxy struct {
	*proto.GroupConnection
	owner *CoordinatorServer
	avId  common.AvatarID // zero until the client hello arrives
}

func newClientProxy(owner *CoordinatorServer, conn net.Conn) *ClientProxy {
	return &ClientProxy{
		GroupConnection: proto.NewGroupConnection(conn, owner.cfg.CompressConnection),
		owner:           owner,
	}
}

func (client *ClientProxy) String() string {
	return fmt.Sprintf("ClientProxy<%d|%s>", client.avId, client.RemoteAddr())
}

// serve reads packets of the client and feeds them to the service main
// routine
func (client *ClientProxy) serve() {
	defer func() {
		client.Close()
		client.owner.packetQueue <- serverPacketItem{client: client}
		err := recover()
		if err != nil && !netutil.IsConnectionError(err) {
			gwlog.TraceError("%s paniced with error: %v", client, err)
		}
	}()

	for {
		msgtype, pkt, err := client.Recv()
		if err != nil {
			gwlog.Panic(err)
		}

		if consts.DEBUG_PACKETS {
			gwlog.Debugf("%s.Recv: msgtype=%d, payload=%d bytes", client, msgtype, len(pkt.Payload()))
		}
		client.owner.packetQueue <- serverPacketItem{client: client, msgtype: msgtype, packet: pkt}
	}
}

func (client *ClientProxy) sendMsg(mt proto.MsgType, payload interface{}) {
	if err := client.SendMsg(mt, payload); err != nil {
		gwlog.Errorf("%s: send msgtype %d failed: %v", client, mt, err)
	}
}

// AvatarId returns the avatar bound to this client connection
func (client *ClientProxy) AvatarId() common.AvatarID {
	return client.avId
}

// ReceiveAllGroups pushes the joinable snapshot to the client
func (client *ClientProxy) ReceiveAllGroups(groups []*group.Group) {
	msg := &proto.ReceiveAllGroupsMsg{Groups: make([][]interface{}, len(groups))}
	for i, g := range groups {
		msg.Groups[i] = g.ToStruct()
	}
	client.sendMsg(proto.MT_RECEIVE_ALL_GROUPS, msg)
}

// UpdateGroup pushes one group record to the client
func (client *ClientProxy) UpdateGroup(g *group.Group) {
	client.sendMsg(proto.MT_UPDATE_GROUP, &proto.UpdateGroupMsg{Group: g.ToStruct()})
}

// GroupLeaveResponse tells the client it left (or lost) its group
func (client *ClientProxy) GroupLeaveResponse(reason group.Response, notify bool) {
	client.sendMsg(proto.MT_GROUP_LEAVE_RESPONSE, &proto.GroupLeaveMsg{
		AvId:   uint32(client.avId),
		Reason: int(reason),
		Notify: notify,
	})
}

// RequestGroupCallback answers a join or create attempt
func (client *ClientProxy) RequestGroupCallback(errCode group.Response, groupType group.Type) {
	client.sendMsg(proto.MT_REQUEST_GROUP_CALLBACK, &proto.RequestGroupCallbackMsg{
		AvId:      uint32(client.avId),
		ErrCode:   int(errCode),
		GroupType: int(groupType),
	})
}

// ReceiveNotification delivers a small user-facing notification
func (client *ClientProxy) ReceiveNotification(code group.Response, arg int) {
	client.sendMsg(proto.MT_RECEIVE_NOTIFICATION, &proto.NotificationMsg{
		AvId: uint32(client.avId),
		Code: int(code),
		Arg:  arg,
	})
}

// ReceiveInvite delivers an invite to the client
func (client *ClientProxy) ReceiveInvite(inviter common.AvatarID, inviterName string, groupType group.Type) {
	client.sendMsg(proto.MT_RECEIVE_INVITE, &proto.ReceiveInviteMsg{
		AvId:        uint32(client.avId),
		InviterAvId: uint32(inviter),
		InviterName: inviterName,
		GroupType:   int(groupType),
	})
}

// ManagerReloaded tells the client to drop its local group state
func (client *ClientProxy) ManagerReloaded() {
	client.sendMsg(proto.MT_MANAGER_RELOADED, nil)
}
