package groupstore

import (
	"fmt"

	timer "github.com/xiaonanln/goTimer"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/config"
	"github.com/tooniverse/groupworld/engine/consts"
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/group"
)

// Service is the authoritative group store. It is the single writer of all
// group records cluster-wide; coordinators only hold read-only caches.
//
// Service is not goroutine safe: every method must be called from the one
// service main routine, which makes each handler an implicit critical
// section. Cross-group invariants are enforced by scanning the full group
// set at the moment of admission.
type Service struct {
	cfg *config.GroupStoreConfig

	groups    map[common.GroupID]*group.Group
	toons     map[common.AvatarID]*ToonInfo
	invites   map[common.AvatarID]common.AvatarIDSet
	allocator *group.IDAllocator
	ais       map[common.DistrictID]AIPeer

	graceTimers    map[common.AvatarID]*timer.Timer
	broadcastTimer *timer.Timer
}

// NewService creates a group store service
func NewService(cfg *config.GroupStoreConfig) *Service {
	return &Service{
		cfg:         cfg,
		groups:      map[common.GroupID]*group.Group{},
		toons:       map[common.AvatarID]*ToonInfo{},
		invites:     map[common.AvatarID]common.AvatarIDSet{},
		allocator:   group.NewIDAllocator(),
		ais:         map[common.DistrictID]AIPeer{},
		graceTimers: map[common.AvatarID]*timer.Timer{},
	}
}

func (s *Service) String() string {
	return fmt.Sprintf("GroupStore<G%d|T%d>", len(s.groups), len(s.toons))
}

// Start registers the periodic full-broadcast timer
func (s *Service) Start() {
	s.broadcastTimer = timer.AddTimer(s.cfg.BroadcastInterval, s.BroadcastAllGroups)
}

// Stop cancels all scheduled timers
func (s *Service) Stop() {
	if s.broadcastTimer != nil {
		s.broadcastTimer.Cancel()
		s.broadcastTimer = nil
	}
	for avId, t := range s.graceTimers {
		t.Cancel()
		delete(s.graceTimers, avId)
	}
}

// RegisterAI registers a connected coordinator and syncs all groups to it
func (s *Service) RegisterAI(peer AIPeer) {
	did := peer.DistrictId()
	if _, ok := s.ais[did]; ok {
		gwlog.Warnf("%s: coordinator of district %d reconnected, replacing", s, did)
	}
	s.ais[did] = peer
	gwlog.Infof("%s: coordinator of district %d registered", s, did)
	peer.ReceiveAllGroups(s.groupList())
}

// UnregisterAI removes a disconnected coordinator. Every avatar of the
// district is treated as gone offline, entering the usual grace window.
func (s *Service) UnregisterAI(peer AIPeer) {
	did := peer.DistrictId()
	if s.ais[did] != peer {
		return // a newer connection already took over the district
	}
	delete(s.ais, did)
	gwlog.Warnf("%s: coordinator of district %d unregistered", s, did)

	for avId, toon := range s.toons {
		if toon.DistrictId == did {
			s.ToonOffline(avId)
		}
	}
}

// Groups returns the live group map, for tests and diagnostics only
func (s *Service) Groups() map[common.GroupID]*group.Group {
	return s.groups
}

// GetToon returns the cached presence of the avatar, nil if unknown
func (s *Service) GetToon(avId common.AvatarID) *ToonInfo {
	return s.toons[avId]
}

func (s *Service) groupList() []*group.Group {
	groups := make([]*group.Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	return groups
}

// GroupOfAvatar scans all groups for any membership of the avatar,
// reservations included
func (s *Service) GroupOfAvatar(avId common.AvatarID) *group.Group {
	for _, g := range s.groups {
		if g.MemberIndex(avId) >= 0 {
			return g
		}
	}
	return nil
}

// memberGroupOf scans all groups for a non-reserved membership of the
// avatar; reservations do not count
func (s *Service) memberGroupOf(avId common.AvatarID) *group.Group {
	for _, g := range s.groups {
		if m := g.Member(avId); m != nil && !m.Reserved {
			return g
		}
	}
	return nil
}

func (s *Service) aiOfToon(avId common.AvatarID) AIPeer {
	toon := s.toons[avId]
	if toon == nil {
		return nil
	}
	return s.ais[toon.DistrictId]
}

func (s *Service) sendLeave(avId common.AvatarID, reason group.Response, notify bool) {
	if ai := s.aiOfToon(avId); ai != nil {
		ai.GroupLeaveResponse(avId, reason, notify)
	}
}

func (s *Service) notify(avId common.AvatarID, code group.Response, arg int) {
	if ai := s.aiOfToon(avId); ai != nil {
		ai.ReceiveNotification(avId, code, arg)
	}
}

func (s *Service) requestCallback(avId common.AvatarID, errCode group.Response, groupType group.Type) {
	if ai := s.aiOfToon(avId); ai != nil {
		ai.RequestGroupCallback(avId, errCode, groupType)
	}
}

// syncGroup pushes the group record to its members on every district
func (s *Service) syncGroup(g *group.Group) {
	memberIds := make([]common.AvatarID, 0, len(g.Avatars))
	for _, av := range g.Avatars {
		memberIds = append(memberIds, av.AvId)
	}
	for _, ai := range s.ais {
		ai.UpdateGroup(memberIds, g)
	}
}

// BroadcastAllGroups pushes the complete group list to every coordinator.
// This is the sole mechanism by which coordinators learn of groups they were
// not a direct party to.
func (s *Service) BroadcastAllGroups() {
	groups := s.groupList()
	for _, ai := range s.ais {
		ai.ReceiveAllGroups(groups)
	}
}

// UpdateToon upserts the presence cache of the avatar. A fresh update
// cancels any pending offline cleanup.
func (s *Service) UpdateToon(info ToonInfo) {
	if t, ok := s.graceTimers[info.AvId]; ok {
		t.Cancel()
		delete(s.graceTimers, info.AvId)
		gwlog.Debugf("%s: offline cleanup of avatar %d canceled by presence update", s, info.AvId)
	}
	s.toons[info.AvId] = &info
}

// ToonOffline schedules the delayed cleanup of the avatar. The deletion is
// deliberately not immediate so that quick reconnects keep group membership.
func (s *Service) ToonOffline(avId common.AvatarID) {
	if s.toons[avId] == nil {
		return
	}
	if t, ok := s.graceTimers[avId]; ok {
		t.Cancel()
	}
	s.graceTimers[avId] = timer.AddCallback(s.cfg.OfflineGrace, func() {
		s.HandleOfflineExpired(avId)
	})
}

// HandleOfflineExpired runs when the offline grace of the avatar expires
func (s *Service) HandleOfflineExpired(avId common.AvatarID) {
	delete(s.graceTimers, avId)
	s.cleanupInvites(avId)

	if g := s.GroupOfAvatar(avId); g != nil {
		if g.Owner() == avId {
			s.disbandGroup(g, group.LeaveDisbanded)
		} else {
			g.RemoveAvatar(avId, false)
			s.syncGroup(g)
		}
	}

	delete(s.toons, avId)
	gwlog.Infof("%s: avatar %d cleaned up after offline grace", s, avId)
}

// PendingOfflineCleanup reports whether the avatar has a scheduled cleanup
func (s *Service) PendingOfflineCleanup(avId common.AvatarID) bool {
	_, ok := s.graceTimers[avId]
	return ok
}

// cleanupInvites removes every invite edge involving the avatar, as inviter
// and as invitee, and releases any reservation the edges were backing.
func (s *Service) cleanupInvites(avId common.AvatarID) {
	if invited, ok := s.invites[avId]; ok {
		// reservations issued for this inviter's invites are released
		if g := s.GroupOfAvatar(avId); g != nil {
			changed := false
			invited.ForEach(func(id common.AvatarID) bool {
				if m := g.Member(id); m != nil && m.Reserved {
					g.RemoveAvatar(id, false)
					changed = true
				}
				return true
			})
			if changed {
				s.syncGroup(g)
			}
		}
		delete(s.invites, avId)
	}

	for inviter, invited := range s.invites {
		if invited.Contains(avId) {
			invited.Del(avId)
			if len(invited) == 0 {
				delete(s.invites, inviter)
			}
		}
	}
	s.clearReservationOf(avId)
}

// clearReservationOf removes any reserved placeholder of the avatar
func (s *Service) clearReservationOf(avId common.AvatarID) {
	for _, g := range s.groups {
		if m := g.Member(avId); m != nil && m.Reserved {
			g.RemoveAvatar(avId, false)
			s.syncGroup(g)
		}
	}
}

// CreateGroup creates a new group owned by ownerAvId. The operation is a
// silent no-op when the owner is unknown or already a real member of a
// group; a pure reservation elsewhere is cleared first.
func (s *Service) CreateGroup(ownerAvId common.AvatarID, creation group.Creation, published bool) {
	toon := s.toons[ownerAvId]
	if toon == nil {
		gwlog.Warnf("%s.CreateGroup: avatar %d has no presence record yet", s, ownerAvId)
		return
	}

	if creation.Validate() != group.OK {
		gwlog.Warnf("%s.CreateGroup: avatar %d sent invalid creation %v", s, ownerAvId, creation)
		return
	}

	if g := s.GroupOfAvatar(ownerAvId); g != nil {
		m := g.Member(ownerAvId)
		if m == nil || !m.Reserved {
			gwlog.Warnf("%s.CreateGroup: avatar %d is already in %s", s, ownerAvId, g)
			return
		}
		// a reservation does not block creating an own group
		g.RemoveAvatar(ownerAvId, false)
		s.syncGroup(g)
	}

	id, err := s.allocator.Allocate()
	if err != nil {
		gwlog.Errorf("%s.CreateGroup: %v", s, err)
		return
	}

	g := &group.Group{
		Id:         id,
		Creation:   creation,
		DistrictId: toon.DistrictId,
		Published:  published,
		ZoneId:     toon.ZoneId,
	}
	g.AddAvatar(ownerAvId, toon.Name, false)
	s.groups[id] = g

	gwlog.Infof("%s: avatar %d created %s published=%v", s, ownerAvId, g, published)
	s.notify(ownerAvId, group.GroupJoined, int(creation.Type))
	s.syncGroup(g)
}

// UpdateGroupSettings replaces the option list of the owner's group
func (s *Service) UpdateGroupSettings(avId common.AvatarID, options []int) {
	g := s.GroupOfAvatar(avId)
	if g == nil || g.Owner() != avId {
		gwlog.Warnf("%s.UpdateGroupSettings: avatar %d owns no group", s, avId)
		return
	}

	check := g.Creation
	check.Options = options
	if check.Validate() != group.OK {
		gwlog.Warnf("%s.UpdateGroupSettings: invalid options %v for %s", s, options, g)
		return
	}

	g.Creation.Options = options
	s.syncGroup(g)
}

// PublishGroup toggles the browse visibility of the owner's group.
// Unpublishable after the shared encounter began.
func (s *Service) PublishGroup(avId common.AvatarID, publish bool) {
	g := s.GroupOfAvatar(avId)
	if g == nil || g.Owner() != avId {
		gwlog.Warnf("%s.PublishGroup: avatar %d owns no group", s, avId)
		return
	}
	if g.AnnouncedBattle {
		s.notify(avId, group.GroupNotAvailable, 0)
		return
	}
	g.Published = publish
	s.syncGroup(g)
}

// LeaveGroup removes the avatar from its group. An owner leaving disbands
// the whole group: groups are never left ownerless.
func (s *Service) LeaveGroup(avId common.AvatarID) {
	g := s.GroupOfAvatar(avId)
	if g == nil {
		gwlog.Warnf("%s.LeaveGroup: avatar %d is in no group", s, avId)
		return
	}
	if g.Owner() == avId {
		s.disbandGroup(g, group.LeaveDisbanded)
		return
	}
	g.RemoveAvatar(avId, false)
	s.sendLeave(avId, group.LeaveVoluntary, false)
	s.syncGroup(g)
}

// KickPlayer removes target from the requester's group and bars it from
// re-joining this group instance
func (s *Service) KickPlayer(avId common.AvatarID, targetAvId common.AvatarID) {
	g := s.GroupOfAvatar(avId)
	if g == nil || g.Owner() != avId {
		gwlog.Warnf("%s.KickPlayer: avatar %d owns no group", s, avId)
		return
	}
	if targetAvId == avId || g.MemberIndex(targetAvId) < 0 {
		gwlog.Warnf("%s.KickPlayer: avatar %d cannot kick %d", s, avId, targetAvId)
		return
	}
	g.RemoveAvatar(targetAvId, true)
	s.sendLeave(targetAvId, group.LeaveKicked, true)
	s.syncGroup(g)
}

// DisbandGroup disbands the group owned by avId
func (s *Service) DisbandGroup(avId common.AvatarID) {
	g := s.GroupOfAvatar(avId)
	if g == nil || g.Owner() != avId {
		gwlog.Warnf("%s.DisbandGroup: avatar %d owns no group", s, avId)
		return
	}
	s.disbandGroup(g, group.LeaveDisbanded)
}

// DisbandToonGroup disbands whatever group the avatar is in, regardless of
// ownership. Used for forced cleanup (district shutdown, moderation).
func (s *Service) DisbandToonGroup(avId common.AvatarID, reason group.Response) {
	g := s.GroupOfAvatar(avId)
	if g == nil {
		gwlog.Warnf("%s.DisbandToonGroup: avatar %d is in no group", s, avId)
		return
	}
	s.disbandGroup(g, reason)
}

func (s *Service) disbandGroup(g *group.Group, reason group.Response) {
	for _, av := range g.Avatars {
		s.sendLeave(av.AvId, reason, !av.Reserved)
	}
	for _, av := range g.Avatars {
		delete(s.invites, av.AvId)
	}
	delete(s.groups, g.Id)
	s.allocator.Free(g.Id)
	gwlog.Infof("%s: %s disbanded (%s)", s, g, reason)
}

// ModForceDisband force-disbands the target's group. The coordinator
// already gated the permission; re-check here since coordinators can lag.
func (s *Service) ModForceDisband(avId common.AvatarID, targetAvId common.AvatarID) {
	toon := s.toons[avId]
	if toon == nil || toon.AccessLevel < common.AccessLevelModerator {
		gwlog.Errorf("%s: SUSPICIOUS avatar %d attempted mod force disband of %d", s, avId, targetAvId)
		return
	}
	gwlog.Infof("%s: moderator %d force-disbands group of %d", s, avId, targetAvId)
	s.DisbandToonGroup(targetAvId, group.LeaveDisbanded)
}

// RequestGroup is the final admission gate for joining a published group.
// All checks are re-performed here even though the coordinator already
// checked, because coordinator caches can be stale.
func (s *Service) RequestGroup(avId common.AvatarID, targetAvId common.AvatarID) {
	toon := s.toons[avId]
	if toon == nil {
		gwlog.Warnf("%s.RequestGroup: avatar %d has no presence record yet", s, avId)
		return
	}

	tg := s.GroupOfAvatar(targetAvId)
	if tg == nil {
		s.requestCallback(avId, group.GroupNonexistent, group.TypeInvalid)
		return
	}

	if g := s.GroupOfAvatar(avId); g != nil {
		m := g.Member(avId)
		if m == nil || !m.Reserved {
			s.requestCallback(avId, group.AlreadyInGroup, tg.Creation.Type)
			return
		}
		if g != tg {
			// a stray reservation elsewhere is cleared, not a blocker
			g.RemoveAvatar(avId, false)
			s.syncGroup(g)
		}
		// a reservation in the target group resolves during admission
	}

	resp := s.admitPlayer(avId, toon, tg, true)
	s.requestCallback(avId, resp, tg.Creation.Type)
	if resp == group.OK {
		s.syncGroup(tg)
	}
}

// admitPlayer performs the authoritative admission checks and inserts the
// avatar on success. requirePublished distinguishes browse joins from
// invite-driven joins, which may enter unpublished groups.
func (s *Service) admitPlayer(avId common.AvatarID, toon *ToonInfo, g *group.Group, requirePublished bool) group.Response {
	if g.AnnouncedBattle {
		return group.GroupNotAvailable
	}
	if requirePublished && !g.Published {
		return group.GroupNotPublic
	}
	if g.HasKicked(avId) {
		return group.KickedFromGroup
	}
	// AddAvatar resolves an existing reservation and enforces capacity
	return g.AddAvatar(avId, toon.Name, false)
}

// InviteGetToonData starts the invite handshake: the store cannot judge
// avatar-specific game state, so candidate validation is delegated back to
// the inviter's coordinator.
func (s *Service) InviteGetToonData(avId common.AvatarID, candidates []common.AvatarID) {
	g := s.GroupOfAvatar(avId)
	if g == nil {
		gwlog.Warnf("%s.InviteGetToonData: avatar %d is in no group", s, avId)
		return
	}
	if len(candidates) > consts.MAX_INVITES_PER_REQUEST {
		candidates = candidates[:consts.MAX_INVITES_PER_REQUEST]
	}
	ai := s.aiOfToon(avId)
	if ai == nil {
		gwlog.Warnf("%s.InviteGetToonData: no coordinator for avatar %d", s, avId)
		return
	}
	ai.ValidateInvited(avId, candidates)
}

// InviteQueryResponse finishes the handshake for the validated candidates:
// an invite edge is recorded per candidate and owner-issued invites reserve
// a capacity slot immediately. Invites vouched by non-owner members do not
// reserve; their accepts go through the normal admission gate.
func (s *Service) InviteQueryResponse(inviterAvId common.AvatarID, validated []common.AvatarID) {
	g := s.GroupOfAvatar(inviterAvId)
	if g == nil {
		delete(s.invites, inviterAvId) // inviter has no group, edges are void
		return
	}
	inviterToon := s.toons[inviterAvId]
	if inviterToon == nil {
		return
	}

	isOwner := g.Owner() == inviterAvId
	changed := false
	for _, candidate := range validated {
		candToon := s.toons[candidate]
		if candToon == nil {
			continue
		}
		if g.MemberIndex(candidate) >= 0 {
			continue // already present, reservation included
		}
		if s.memberGroupOf(candidate) != nil {
			continue // a full member of another group is not invitable
		}

		if isOwner {
			if g.AddAvatar(candidate, candToon.Name, true) != group.OK {
				continue
			}
			changed = true
		}

		edges, ok := s.invites[inviterAvId]
		if !ok {
			edges = common.AvatarIDSet{}
			s.invites[inviterAvId] = edges
		}
		edges.Add(candidate)

		if ai := s.aiOfToon(candidate); ai != nil {
			ai.ReceiveInvite(candidate, inviterAvId, inviterToon.Name, g.Creation.Type)
		}
	}

	if changed {
		s.syncGroup(g)
	}
}

// RespondToInvite resolves an outstanding invite. A response without a
// matching edge means the invite expired or was canceled; the responder is
// told so and any leftover reservation is released.
func (s *Service) RespondToInvite(avId common.AvatarID, inviterAvId common.AvatarID, accept bool) {
	edges := s.invites[inviterAvId]
	if edges == nil || !edges.Contains(avId) {
		s.notify(avId, group.InviteExpired, 0)
		s.clearReservationOf(avId)
		return
	}
	edges.Del(avId)
	if len(edges) == 0 {
		delete(s.invites, inviterAvId)
	}

	g := s.GroupOfAvatar(inviterAvId)
	if g == nil {
		s.notify(avId, group.InviteExpired, 0)
		s.clearReservationOf(avId)
		return
	}

	if !accept {
		if m := g.Member(avId); m != nil && m.Reserved {
			g.RemoveAvatar(avId, false)
			s.syncGroup(g)
		}
		s.notify(inviterAvId, group.InviteDeclined, int(avId))
		return
	}

	toon := s.toons[avId]
	if toon == nil {
		gwlog.Warnf("%s.RespondToInvite: avatar %d has no presence record yet", s, avId)
		return
	}

	// the responder may have joined another group after the invite went
	// out; re-scan the cluster before admitting
	if og := s.memberGroupOf(avId); og != nil && og != g {
		s.requestCallback(avId, group.AlreadyInGroup, g.Creation.Type)
		if m := g.Member(avId); m != nil && m.Reserved {
			g.RemoveAvatar(avId, false)
			s.syncGroup(g)
		}
		return
	}
	for _, og := range s.groups {
		if og == g {
			continue
		}
		if m := og.Member(avId); m != nil && m.Reserved {
			// a stray reservation elsewhere is cleared, not a blocker
			og.RemoveAvatar(avId, false)
			s.syncGroup(og)
		}
	}

	if m := g.Member(avId); m != nil && m.Reserved {
		// owner-issued invite: the reserved slot resolves into membership
		g.AddAvatar(avId, toon.Name, false)
		s.syncGroup(g)
	} else {
		resp := s.admitPlayer(avId, toon, g, false)
		if resp != group.OK {
			s.requestCallback(avId, resp, g.Creation.Type)
			return
		}
		s.syncGroup(g)
	}

	s.notify(inviterAvId, group.InviteAccepted, int(avId))
	s.notify(avId, group.GroupJoined, int(g.Creation.Type))
}

// AvatarChangedZone enforces zone consistency. Only the owner's moves
// matter: a group whose owner walked away from the relevant content is
// disbanded outright rather than repaired.
func (s *Service) AvatarChangedZone(avId common.AvatarID, newZone common.ZoneID, oldZone common.ZoneID) {
	if toon := s.toons[avId]; toon != nil {
		toon.ZoneId = newZone
	}

	g := s.GroupOfAvatar(avId)
	if g == nil || g.Owner() != avId {
		return
	}

	def := g.Def()
	if def == nil {
		return
	}

	if def.ForceZoneConstant {
		if newZone != g.ZoneId {
			gwlog.Infof("%s: owner %d left constant zone %d, disbanding %s", s, avId, g.ZoneId, g)
			s.disbandGroup(g, group.LeaveZoneChanged)
		}
		return
	}

	if def.HasZone(newZone) {
		return
	}
	if def.AllowFullHood && newZone.Hood() == g.ZoneId.Hood() {
		return
	}
	gwlog.Infof("%s: owner %d moved to zone %d outside %s, disbanding", s, avId, newZone, g)
	s.disbandGroup(g, group.LeaveZoneChanged)
}

// AnnounceBattle marks the shared encounter of the avatar's group as begun.
// Idempotent: only the first signal has any effect.
func (s *Service) AnnounceBattle(avId common.AvatarID) {
	g := s.GroupOfAvatar(avId)
	if g == nil {
		gwlog.Warnf("%s.AnnounceBattle: avatar %d is in no group", s, avId)
		return
	}

	evicted, first := g.AnnounceBattle()
	if !first {
		return
	}
	for _, e := range evicted {
		s.sendLeave(e, group.LeaveDisbanded, false)
	}
	gwlog.Infof("%s: %s announced battle, triggered by avatar %d", s, g, avId)
	s.syncGroup(g)
}

// AskForGroupInfo answers a single-group query of the avatar
func (s *Service) AskForGroupInfo(avId common.AvatarID, groupId common.GroupID) {
	g := s.groups[groupId]
	if g == nil {
		s.notify(avId, group.GroupNonexistent, int(groupId))
		return
	}
	if ai := s.aiOfToon(avId); ai != nil {
		ai.UpdateGroup([]common.AvatarID{avId}, g)
	}
}
