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

// CoordinatorProxy is the store-side handle of one connected district
// coordinator. Its send methods implement groupstore.AIPeer.
type CoordinatorProxy struct {
	*proto.GroupConnection
	owner      *StoreServer
	districtId common.DistrictID
	registered bool
}

func newCoordinatorProxy(owner *StoreServer, conn net.Conn) *CoordinatorProxy {
	return &CoordinatorProxy{
		GroupConnection: proto.NewGroupConnection(conn, false),
		owner:           owner,
	}
}

func (cp *CoordinatorProxy) String() string {
	return fmt.Sprintf("CoordinatorProxy<%d|%s>", cp.districtId, cp.RemoteAddr())
}

// serve reads packets of the coordinator and feeds them to the service
// main routine
func (cp *CoordinatorProxy) serve() {
	defer func() {
		cp.Close()
		cp.owner.packetQueue <- packetQueueItem{cp: cp}
		err := recover()
		if err != nil && !netutil.IsConnectionError(err) {
			gwlog.TraceError("%s paniced with error: %v", cp, err)
		}
	}()

	gwlog.Infof("New coordinator connection: %s", cp.RemoteAddr())
	for {
		msgtype, pkt, err := cp.Recv()
		if err != nil {
			gwlog.Panic(err)
		}

		if consts.DEBUG_PACKETS {
			gwlog.Debugf("%s.Recv: msgtype=%d, payload=%d bytes", cp, msgtype, len(pkt.Payload()))
		}
		cp.owner.packetQueue <- packetQueueItem{cp, msgtype, pkt}
	}
}

func (cp *CoordinatorProxy) sendMsg(mt proto.MsgType, payload interface{}) {
	if err := cp.SendMsg(mt, payload); err != nil {
		gwlog.Errorf("%s: send msgtype %d failed: %v", cp, mt, err)
	}
}

// DistrictId returns the district of this coordinator
func (cp *CoordinatorProxy) DistrictId() common.DistrictID {
	return cp.districtId
}

// ReceiveAllGroups pushes the full group list to the coordinator
func (cp *CoordinatorProxy) ReceiveAllGroups(groups []*group.Group) {
	msg := &proto.ReceiveAllGroupsMsg{Groups: make([][]interface{}, len(groups))}
	for i, g := range groups {
		msg.Groups[i] = g.ToStruct()
	}
	cp.sendMsg(proto.MT_RECEIVE_ALL_GROUPS, msg)
}

// UpdateGroup pushes one group record for the listed avatars
func (cp *CoordinatorProxy) UpdateGroup(avIds []common.AvatarID, g *group.Group) {
	cp.sendMsg(proto.MT_UPDATE_GROUP, &proto.UpdateGroupMsg{
		AvIds: avatarIDsToWire(avIds),
		Group: g.ToStruct(),
	})
}

// GroupLeaveResponse tells the avatar it left (or lost) its group
func (cp *CoordinatorProxy) GroupLeaveResponse(avId common.AvatarID, reason group.Response, notify bool) {
	cp.sendMsg(proto.MT_GROUP_LEAVE_RESPONSE, &proto.GroupLeaveMsg{
		AvId:   uint32(avId),
		Reason: int(reason),
		Notify: notify,
	})
}

// RequestGroupCallback answers a join request
func (cp *CoordinatorProxy) RequestGroupCallback(avId common.AvatarID, errCode group.Response, groupType group.Type) {
	cp.sendMsg(proto.MT_REQUEST_GROUP_CALLBACK, &proto.RequestGroupCallbackMsg{
		AvId:      uint32(avId),
		ErrCode:   int(errCode),
		GroupType: int(groupType),
	})
}

// ReceiveNotification delivers a small user-facing notification
func (cp *CoordinatorProxy) ReceiveNotification(avId common.AvatarID, code group.Response, arg int) {
	cp.sendMsg(proto.MT_RECEIVE_NOTIFICATION, &proto.NotificationMsg{
		AvId: uint32(avId),
		Code: int(code),
		Arg:  arg,
	})
}

// ValidateInvited asks the coordinator to validate invite candidates
func (cp *CoordinatorProxy) ValidateInvited(inviter common.AvatarID, candidates []common.AvatarID) {
	cp.sendMsg(proto.MT_VALIDATE_INVITED, &proto.ValidateInvitedReq{
		InviterAvId: uint32(inviter),
		Candidates:  avatarIDsToWire(candidates),
	})
}

// ReceiveInvite delivers an invite to the invited avatar
func (cp *CoordinatorProxy) ReceiveInvite(invited common.AvatarID, inviter common.AvatarID, inviterName string, groupType group.Type) {
	cp.sendMsg(proto.MT_RECEIVE_INVITE, &proto.ReceiveInviteMsg{
		AvId:        uint32(invited),
		InviterAvId: uint32(inviter),
		InviterName: inviterName,
		GroupType:   int(groupType),
	})
}
