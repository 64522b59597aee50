package groupstore

import (
	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/group"
)

// AIPeer is the outbound side of one connected district coordinator. All
// methods are asynchronous sends; the store never waits for an answer.
type AIPeer interface {
	DistrictId() common.DistrictID

	// ReceiveAllGroups replaces the coordinator's whole group cache
	ReceiveAllGroups(groups []*group.Group)
	// UpdateGroup pushes one group record for the listed avatars
	UpdateGroup(avIds []common.AvatarID, g *group.Group)
	// GroupLeaveResponse tells the avatar it left (or lost) its group
	GroupLeaveResponse(avId common.AvatarID, reason group.Response, notify bool)
	// RequestGroupCallback answers a join request
	RequestGroupCallback(avId common.AvatarID, errCode group.Response, groupType group.Type)
	// ReceiveNotification delivers a small user-facing notification
	ReceiveNotification(avId common.AvatarID, code group.Response, arg int)
	// ValidateInvited asks the coordinator to validate invite candidates
	ValidateInvited(inviter common.AvatarID, candidates []common.AvatarID)
	// ReceiveInvite delivers an invite to the invited avatar
	ReceiveInvite(invited common.AvatarID, inviter common.AvatarID, inviterName string, groupType group.Type)
}
