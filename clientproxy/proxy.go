package clientproxy

import (
	"fmt"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/group"
)

// Sender is the outbound side of the connection to the district
// coordinator. Every call is fire-and-forget; results arrive later as
// server pushes.
type Sender interface {
	CreateGroup(creation group.Creation, published bool, force bool)
	UpdateGroupSettings(options []int)
	DisbandGroup()
	LeaveGroup()
	KickPlayer(avId common.AvatarID)
	InviteGetToonData(avIds []common.AvatarID)
	PublishGroup(publish bool)
	RequestGo()
	RespondToInvite(inviterAvId common.AvatarID, accept bool)
	RequestGroup(targetAvId common.AvatarID, force bool)
	AskForGroupInfo(groupId common.GroupID)
	ModForceDisband(targetAvId common.AvatarID)
	AvatarChangedZone(newZone common.ZoneID)
}

// WorldView exposes the bits of local game state the proxy needs for its
// defensive pre-checks. The server re-validates everything regardless.
type WorldView interface {
	// KnownEncounterEntrance reports if the entrance of the group's
	// encounter is a real loaded object
	KnownEncounterEntrance(g *group.Group) bool
	// AvatarLoaded reports if the avatar object is currently loaded
	AvatarLoaded(avId common.AvatarID) bool
	// AvatarDisabled reports if the avatar object is disabled
	AvatarDisabled(avId common.AvatarID) bool
}

// IncomingInvite is one invite received from another avatar
type IncomingInvite struct {
	Inviter     common.AvatarID
	InviterName string
	GroupType   group.Type
}

// GroupProxy is the client side of the group protocol. It holds at most its
// own group plus a joinable snapshot, both owned by the server: the proxy
// never mutates group state speculatively, all changes arrive as pushes.
type GroupProxy struct {
	avId   common.AvatarID
	sender Sender
	view   WorldView

	own      *group.Group
	joinable []*group.Group

	// invite targets queued at creation time, sent only once the own
	// group record is observed to exist server-side
	pendingInvites []common.AvatarID

	invites         []IncomingInvite
	lastLeaveReason group.Response
	lastCallback    group.Response
}

// NewGroupProxy creates a group proxy for the avatar
func NewGroupProxy(avId common.AvatarID, sender Sender, view WorldView) *GroupProxy {
	return &GroupProxy{
		avId:            avId,
		sender:          sender,
		view:            view,
		lastLeaveReason: group.OK,
		lastCallback:    group.OK,
	}
}

func (p *GroupProxy) String() string {
	return fmt.Sprintf("GroupProxy<%d>", p.avId)
}

// OwnGroup returns the avatar's own group, nil if none
func (p *GroupProxy) OwnGroup() *group.Group {
	return p.own
}

// JoinableGroups returns the latest joinable snapshot
func (p *GroupProxy) JoinableGroups() []*group.Group {
	return p.joinable
}

// Invites returns the invites received and not yet responded to
func (p *GroupProxy) Invites() []IncomingInvite {
	return p.invites
}

// LastLeaveReason returns the reason of the last group leave push
func (p *GroupProxy) LastLeaveReason() group.Response {
	return p.lastLeaveReason
}

// LastCallback returns the result of the last join or create attempt
func (p *GroupProxy) LastCallback() group.Response {
	return p.lastCallback
}

// CreateGroup requests a new group. Avatars in inviteAvIds are queued
// locally and invited only after the server confirms the group exists,
// avoiding the race of inviting into a not-yet-created group.
func (p *GroupProxy) CreateGroup(creation group.Creation, published bool, inviteAvIds []common.AvatarID) {
	p.pendingInvites = append(p.pendingInvites[:0], inviteAvIds...)
	p.sender.CreateGroup(creation, published, false)
}

// UpdateGroupSettings requests an option change of the own group
func (p *GroupProxy) UpdateGroupSettings(options []int) {
	p.sender.UpdateGroupSettings(options)
}

// DisbandGroup requests disbanding the own group
func (p *GroupProxy) DisbandGroup() {
	p.sender.DisbandGroup()
}

// LeaveGroup requests leaving the own group. The local record stays until
// the server confirms with a leave push.
func (p *GroupProxy) LeaveGroup() {
	p.sender.LeaveGroup()
}

// KickPlayer requests kicking the avatar from the own group
func (p *GroupProxy) KickPlayer(avId common.AvatarID) {
	p.sender.KickPlayer(avId)
}

// InvitePlayers requests inviting the avatars into the own group
func (p *GroupProxy) InvitePlayers(avIds []common.AvatarID) {
	p.sender.InviteGetToonData(avIds)
}

// PublishGroup requests toggling the browse visibility of the own group
func (p *GroupProxy) PublishGroup(publish bool) {
	p.sender.PublishGroup(publish)
}

// RequestGroup requests joining the group owned by targetAvId
func (p *GroupProxy) RequestGroup(targetAvId common.AvatarID, force bool) {
	p.sender.RequestGroup(targetAvId, force)
}

// AskForGroupInfo queries one group record
func (p *GroupProxy) AskForGroupInfo(groupId common.GroupID) {
	p.sender.AskForGroupInfo(groupId)
}

// ModForceDisband requests force-disbanding the target's group. Requires
// moderator access; the coordinator and the store both gate it.
func (p *GroupProxy) ModForceDisband(targetAvId common.AvatarID) {
	p.sender.ModForceDisband(targetAvId)
}

// AvatarChangedZone reports the avatar's own zone change upward
func (p *GroupProxy) AvatarChangedZone(newZone common.ZoneID) {
	p.sender.AvatarChangedZone(newZone)
}

// RespondToInvite answers a received invite
func (p *GroupProxy) RespondToInvite(inviterAvId common.AvatarID, accept bool) {
	for i, inv := range p.invites {
		if inv.Inviter == inviterAvId {
			p.invites = append(p.invites[:i], p.invites[i+1:]...)
			break
		}
	}
	p.sender.RespondToInvite(inviterAvId, accept)
}

// RequestGo asks to start the shared encounter of the own group. The local
// pre-checks only avoid an obviously doomed round trip; a passing check
// does not guarantee the server accepts.
func (p *GroupProxy) RequestGo() bool {
	g := p.own
	if g == nil {
		return false
	}
	if g.Owner() != p.avId {
		return false
	}
	if p.view != nil {
		if !p.view.KnownEncounterEntrance(g) {
			gwlog.Debugf("%s: encounter entrance not loaded, not requesting go", p)
			return false
		}
		for _, av := range g.Avatars {
			if av.Reserved {
				return false // unresolved reservation, group not ready
			}
			if !p.view.AvatarLoaded(av.AvId) || p.view.AvatarDisabled(av.AvId) {
				gwlog.Debugf("%s: member %d not ready, not requesting go", p, av.AvId)
				return false
			}
		}
	}
	p.sender.RequestGo()
	return true
}

// HandleUpdateGroup processes a pushed group record
func (p *GroupProxy) HandleUpdateGroup(g *group.Group) {
	if g.MemberIndex(p.avId) < 0 {
		if p.own != nil && p.own.Id == g.Id {
			// not a member anymore, wait for the leave push
			p.own = g
		}
		return
	}

	hadOwn := p.own != nil
	p.own = g
	if !hadOwn {
		p.flushPendingInvites()
	}
}

// HandleReceiveAllGroups replaces the joinable snapshot wholesale
func (p *GroupProxy) HandleReceiveAllGroups(groups []*group.Group) {
	p.joinable = groups

	for _, g := range groups {
		if g.MemberIndex(p.avId) >= 0 {
			hadOwn := p.own != nil
			p.own = g
			if !hadOwn {
				p.flushPendingInvites()
			}
			break
		}
	}
}

func (p *GroupProxy) flushPendingInvites() {
	if len(p.pendingInvites) == 0 {
		return
	}
	invites := p.pendingInvites
	p.pendingInvites = nil
	p.sender.InviteGetToonData(invites)
}

// HandleGroupLeaveResponse processes the authoritative leave push
func (p *GroupProxy) HandleGroupLeaveResponse(reason group.Response, notify bool) {
	p.own = nil
	p.pendingInvites = nil
	p.lastLeaveReason = reason
	if notify {
		gwlog.Infof("%s: left group: %s", p, reason)
	}
}

// HandleRequestGroupCallback records the answer of a join or create attempt
func (p *GroupProxy) HandleRequestGroupCallback(errCode group.Response, groupType group.Type) {
	p.lastCallback = errCode
}

// HandleReceiveNotification processes a notification push
func (p *GroupProxy) HandleReceiveNotification(code group.Response, arg int) {
	gwlog.Debugf("%s: notification %s arg=%d", p, code, arg)
}

// HandleReceiveInvite records a received invite for the player to answer
func (p *GroupProxy) HandleReceiveInvite(inviter common.AvatarID, inviterName string, groupType group.Type) {
	for _, inv := range p.invites {
		if inv.Inviter == inviter {
			return // one pending invite per inviter
		}
	}
	p.invites = append(p.invites, IncomingInvite{inviter, inviterName, groupType})
}

// HandleManagerReloaded processes a coordinator restart: whatever group the
// avatar had is gone, the avatar recreates it if it wants to
func (p *GroupProxy) HandleManagerReloaded() {
	p.own = nil
	p.joinable = nil
	p.pendingInvites = nil
	p.lastLeaveReason = group.ManagerRestart
	gwlog.Infof("%s: group manager reloaded, local group state dropped", p)
}
