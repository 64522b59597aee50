package coordinator

import (
	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/group"
)

// StorePeer is the outbound side of the connection to the group store. All
// methods are asynchronous sends; answers arrive later as independent
// inbound messages correlated by avatar and group id.
type StorePeer interface {
	UpdateToon(av *Avatar)
	ToonOffline(avId common.AvatarID)
	AvatarChangedZone(avId common.AvatarID, newZone common.ZoneID, oldZone common.ZoneID)

	CreateGroup(avId common.AvatarID, creation group.Creation, published bool)
	UpdateGroupSettings(avId common.AvatarID, options []int)
	DisbandGroup(avId common.AvatarID)
	DisbandToonGroup(avId common.AvatarID, reason group.Response)
	LeaveGroup(avId common.AvatarID)
	KickPlayer(avId common.AvatarID, targetAvId common.AvatarID)
	PublishGroup(avId common.AvatarID, publish bool)
	RequestGroup(avId common.AvatarID, targetAvId common.AvatarID)
	InviteGetToonData(avId common.AvatarID, candidates []common.AvatarID)
	InviteQueryResponse(avId common.AvatarID, validated []common.AvatarID)
	RespondToInvite(avId common.AvatarID, inviterAvId common.AvatarID, accept bool)
	AskForGroupInfo(avId common.AvatarID, groupId common.GroupID)
	AnnounceBattle(avId common.AvatarID)
	ModForceDisband(avId common.AvatarID, targetAvId common.AvatarID)
}

// ClientPeer is the outbound side of one connected client
type ClientPeer interface {
	AvatarId() common.AvatarID

	ReceiveAllGroups(groups []*group.Group)
	UpdateGroup(g *group.Group)
	GroupLeaveResponse(reason group.Response, notify bool)
	RequestGroupCallback(errCode group.Response, groupType group.Type)
	ReceiveNotification(code group.Response, arg int)
	ReceiveInvite(inviter common.AvatarID, inviterName string, groupType group.Type)
	ManagerReloaded()
}
