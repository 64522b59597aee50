package proto

// MsgType is the type of messages exchanged between groupworld processes
type MsgType uint16

// Message types. Values cross the wire and must never be renumbered.
const (
	MT_INVALID MsgType = iota

	// registration & presence
	MT_SET_COORDINATOR
	MT_CLIENT_HELLO
	MT_CLIENT_ZONE_CHANGED

	// client -> coordinator
	MT_CREATE_GROUP
	MT_UPDATE_GROUP_SETTINGS
	MT_DISBAND_GROUP
	MT_LEAVE_GROUP
	MT_KICK_PLAYER
	MT_INVITE_PLAYER_GET_DNA
	MT_PUBLISH_GROUP
	MT_REQUEST_GO
	MT_RESPOND_TO_GROUP_INVITE
	MT_REQUEST_GROUP
	MT_ASK_FOR_GROUP_INFO
	MT_MOD_FORCE_DISBAND
)

const ( // coordinator -> group store
	MT_UD_START MsgType = 1000 + iota
	MT_UD_UPDATE_TOON
	MT_UD_TOON_OFFLINE
	MT_UD_CREATE_GROUP
	MT_UD_UPDATE_GROUP_SETTINGS
	MT_UD_LEAVE_GROUP
	MT_UD_KICK_PLAYER
	MT_UD_PUBLISH_GROUP
	MT_UD_REQUEST_GROUP
	MT_UD_RESPOND_TO_INVITE
	MT_UD_INVITE_GET_TOON_DATA
	MT_UD_INVITE_QUERY_RESPONSE
	MT_UD_AVATAR_CHANGED_ZONE
	MT_UD_DISBAND_TOON_GROUP
	MT_UD_ANNOUNCE_BATTLE
	MT_UD_ASK_FOR_GROUP_INFO
	MT_UD_MOD_FORCE_DISBAND
	MT_UD_DISBAND_GROUP
)

const ( // group store -> coordinator -> client pushes
	MT_PUSH_START MsgType = 2000 + iota
	MT_RECEIVE_ALL_GROUPS
	MT_UPDATE_GROUP
	MT_GROUP_LEAVE_RESPONSE
	MT_REQUEST_GROUP_CALLBACK
	MT_RECEIVE_NOTIFICATION
	MT_VALIDATE_INVITED
	MT_RECEIVE_INVITE
	MT_MANAGER_RELOADED
)

// CreationMsg mirrors group.Creation on the wire
type CreationMsg struct {
	Type    int
	Options []int
	Size    int
}

// SetCoordinatorReq registers a coordinator with the group store
type SetCoordinatorReq struct {
	DistrictId uint32
}

// ClientHelloReq introduces an avatar on a fresh client connection
type ClientHelloReq struct {
	AvId        uint32
	Name        string
	ZoneId      uint32
	Hp          int
	MaxHp       int
	Level       int
	AccessLevel int
}

// ZoneChangedReq reports an avatar zone change
type ZoneChangedReq struct {
	AvId    uint32
	NewZone uint32
	OldZone uint32
}

// CreateGroupReq asks for a new group
type CreateGroupReq struct {
	Creation  CreationMsg
	Published bool
	Force     bool
}

// UpdateGroupSettingsReq changes the option list of the requester's group
type UpdateGroupSettingsReq struct {
	Options []int
}

// KickPlayerReq kicks a member out of the requester's group
type KickPlayerReq struct {
	AvId uint32
}

// InvitePlayersReq asks to invite up to 8 avatars
type InvitePlayersReq struct {
	AvIds []uint32
}

// PublishGroupReq toggles the visibility of the requester's group
type PublishGroupReq struct {
	Publish bool
}

// RespondToInviteReq accepts or declines an outstanding invite
type RespondToInviteReq struct {
	InviterAvId uint32
	Accept      bool
}

// RequestGroupReq asks to join the published group of the target avatar
type RequestGroupReq struct {
	TargetAvId uint32
	Force      bool
}

// AskForGroupInfoReq queries one group by id
type AskForGroupInfoReq struct {
	GroupId uint32
}

// ModForceDisbandReq force-disbands the target's group (moderators only)
type ModForceDisbandReq struct {
	TargetAvId uint32
}

// ToonInfoMsg is the presence record pushed from coordinators to the store
type ToonInfoMsg struct {
	AvId        uint32
	Name        string
	ZoneId      uint32
	DistrictId  uint32
	Hp          int
	MaxHp       int
	Level       int
	AccessLevel int
}

// ToonOfflineReq reports an avatar going offline
type ToonOfflineReq struct {
	AvId uint32
}

// UdCreateGroupReq relays a group creation to the store
type UdCreateGroupReq struct {
	AvId      uint32
	Creation  CreationMsg
	Published bool
}

// UdUpdateGroupSettingsReq relays a settings update to the store
type UdUpdateGroupSettingsReq struct {
	AvId    uint32
	Options []int
}

// UdLeaveGroupReq relays a leave to the store
type UdLeaveGroupReq struct {
	AvId uint32
}

// UdDisbandGroupReq relays a disband of the avatar's own group
type UdDisbandGroupReq struct {
	AvId uint32
}

// UdKickPlayerReq relays a kick to the store
type UdKickPlayerReq struct {
	AvId       uint32
	TargetAvId uint32
}

// UdPublishGroupReq relays a publish toggle to the store
type UdPublishGroupReq struct {
	AvId    uint32
	Publish bool
}

// UdRequestGroupReq relays a join request to the store
type UdRequestGroupReq struct {
	AvId       uint32
	TargetAvId uint32
}

// UdRespondToInviteReq relays an invite response to the store
type UdRespondToInviteReq struct {
	AvId        uint32
	InviterAvId uint32
	Accept      bool
}

// UdInviteGetToonDataReq starts the invite handshake at the store
type UdInviteGetToonDataReq struct {
	AvId       uint32
	Candidates []uint32
}

// UdInviteQueryResponseReq returns the validated invite candidates to the store
type UdInviteQueryResponseReq struct {
	InviterAvId uint32
	Validated   []uint32
}

// UdAvatarChangedZoneReq relays a zone change to the store
type UdAvatarChangedZoneReq struct {
	AvId    uint32
	NewZone uint32
	OldZone uint32
}

// UdDisbandToonGroupReq forces the disband of the avatar's group
type UdDisbandToonGroupReq struct {
	AvId   uint32
	Reason int
}

// UdAnnounceBattleReq reports that the avatar entered the shared encounter
type UdAnnounceBattleReq struct {
	AvId uint32
}

// UdAskForGroupInfoReq queries one group from the store
type UdAskForGroupInfoReq struct {
	AvId    uint32
	GroupId uint32
}

// UdModForceDisbandReq relays a moderator disband to the store
type UdModForceDisbandReq struct {
	AvId       uint32
	TargetAvId uint32
}

// ReceiveAllGroupsMsg is the periodic full broadcast of all groups
type ReceiveAllGroupsMsg struct {
	Groups [][]interface{}
}

// UpdateGroupMsg pushes one group record to the avatars listed in AvIds
type UpdateGroupMsg struct {
	AvIds []uint32
	Group []interface{}
}

// GroupLeaveMsg tells an avatar that it is no longer in its group
type GroupLeaveMsg struct {
	AvId   uint32
	Reason int
	Notify bool
}

// RequestGroupCallbackMsg is the typed answer to a join request
type RequestGroupCallbackMsg struct {
	AvId      uint32
	ErrCode   int
	ErrType   int
	GroupType int
}

// NotificationMsg carries a small user-facing notification
type NotificationMsg struct {
	AvId uint32
	Code int
	Arg  int
}

// ValidateInvitedReq asks the coordinator to validate invite candidates
type ValidateInvitedReq struct {
	InviterAvId uint32
	Candidates  []uint32
}

// ReceiveInviteMsg delivers an invite to the invited avatar
type ReceiveInviteMsg struct {
	AvId        uint32
	InviterAvId uint32
	InviterName string
	GroupType   int
}
