package coordinator

import (
	"fmt"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/config"
	"github.com/tooniverse/groupworld/engine/consts"
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/group"
)

// Service is the district coordinator. It keeps a read-only cache of the
// store's groups, validates avatar-local constraints before relaying client
// calls upward, and fans store pushes out to the attached clients.
//
// Service is not goroutine safe: every method must be called from the one
// service main routine.
type Service struct {
	cfg   *config.CoordinatorConfig
	store StorePeer

	clients map[common.AvatarID]ClientPeer
	avatars map[common.AvatarID]*Avatar

	// read-only cache, replaced wholesale on every store broadcast. The
	// avatarGroups index is rebuilt from scratch each time rather than
	// maintained incrementally.
	groups       map[common.GroupID]*group.Group
	avatarGroups map[common.AvatarID]common.GroupID

	filterer      *Filterer
	strongLimiter *RateLimiter
	limiter       *RateLimiter

	draining bool
}

// NewService creates a coordinator service for the configured district
func NewService(cfg *config.CoordinatorConfig, store StorePeer) *Service {
	return &Service{
		cfg:           cfg,
		store:         store,
		clients:       map[common.AvatarID]ClientPeer{},
		avatars:       map[common.AvatarID]*Avatar{},
		groups:        map[common.GroupID]*group.Group{},
		avatarGroups:  map[common.AvatarID]common.GroupID{},
		filterer:      NewFilterer(),
		strongLimiter: NewRateLimiter(cfg.StrongRateMax, cfg.StrongRatePeriod),
		limiter:       NewRateLimiter(cfg.RateMax, cfg.RatePeriod),
	}
}

func (s *Service) String() string {
	return fmt.Sprintf("Coordinator<%d|%s>", s.cfg.DistrictId, s.cfg.DistrictName)
}

// DistrictId returns the district this coordinator serves
func (s *Service) DistrictId() common.DistrictID {
	return s.cfg.DistrictId
}

// Population returns the number of avatars attached to this district
func (s *Service) Population() int {
	return len(s.avatars)
}

// SetDraining marks the district as draining. A draining district rejects
// new group activity while existing groups run to completion.
func (s *Service) SetDraining(draining bool) {
	s.draining = draining
	gwlog.Infof("%s: draining=%v", s, draining)
}

// GroupOfAvatar returns the cached group of the avatar, nil if none
func (s *Service) GroupOfAvatar(avId common.AvatarID) *group.Group {
	if gid, ok := s.avatarGroups[avId]; ok {
		return s.groups[gid]
	}
	return nil
}

func (s *Service) newCheckContext(av *Avatar) *CheckContext {
	return &CheckContext{
		Avatar:     av,
		OwnGroup:   s.GroupOfAvatar(av.AvId),
		Draining:   s.draining,
		Population: len(s.avatars),
		PopCap:     s.cfg.DistrictPopCap,
	}
}

// pushPresence refreshes the store's presence record of the avatar so its
// authoritative decision is not made on a stale view
func (s *Service) pushPresence(av *Avatar) {
	s.store.UpdateToon(av)
}

// AttachClient registers a connected client and announces its presence to
// the store
func (s *Service) AttachClient(peer ClientPeer, av Avatar) {
	avId := av.AvId
	if _, ok := s.clients[avId]; ok {
		gwlog.Warnf("%s: avatar %d reconnected, replacing client", s, avId)
	}
	s.clients[avId] = peer
	s.avatars[avId] = &av
	gwlog.Infof("%s: %s attached", s, &av)
	s.pushPresence(&av)
}

// DetachClient unregisters a disconnected client and signals the store,
// which starts the offline grace window for the avatar
func (s *Service) DetachClient(avId common.AvatarID) {
	if _, ok := s.clients[avId]; !ok {
		return
	}
	delete(s.clients, avId)
	delete(s.avatars, avId)
	s.strongLimiter.Forget(avId)
	s.limiter.Forget(avId)
	s.store.ToonOffline(avId)
	gwlog.Infof("%s: avatar %d detached", s, avId)
}

// AvatarChangedZone tracks a zone change locally and relays it to the store
func (s *Service) AvatarChangedZone(avId common.AvatarID, newZone common.ZoneID) {
	av := s.avatars[avId]
	if av == nil {
		gwlog.Warnf("%s.AvatarChangedZone: avatar %d is not attached", s, avId)
		return
	}
	oldZone := av.ZoneId
	av.ZoneId = newZone
	s.pushPresence(av)
	s.store.AvatarChangedZone(avId, newZone, oldZone)
}

// CreateGroup validates and relays a group creation request
func (s *Service) CreateGroup(avId common.AvatarID, creation group.Creation, published bool, force bool) {
	av := s.avatars[avId]
	if av == nil {
		return
	}
	if !s.strongLimiter.Allow(avId) {
		return // silent drop
	}

	ctx := s.newCheckContext(av)
	ctx.Creation = creation
	ctx.IgnoreSafety = force
	if resp := s.filterer.Run(ctx); resp != group.OK {
		s.requestCallback(avId, resp, creation.Type)
		return
	}

	s.pushPresence(av)
	s.store.CreateGroup(avId, creation, published)
}

// UpdateGroupSettings relays an option change of the avatar's group
func (s *Service) UpdateGroupSettings(avId common.AvatarID, options []int) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	s.pushPresence(av)
	s.store.UpdateGroupSettings(avId, options)
}

// DisbandGroup relays a disband request of the group owner
func (s *Service) DisbandGroup(avId common.AvatarID) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	s.pushPresence(av)
	s.store.DisbandGroup(avId)
}

// LeaveGroup relays a leave request
func (s *Service) LeaveGroup(avId common.AvatarID) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	s.pushPresence(av)
	s.store.LeaveGroup(avId)
}

// KickPlayer relays a kick request of the group owner
func (s *Service) KickPlayer(avId common.AvatarID, targetAvId common.AvatarID) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	s.pushPresence(av)
	s.store.KickPlayer(avId, targetAvId)
}

// PublishGroup relays a publish toggle of the group owner
func (s *Service) PublishGroup(avId common.AvatarID, publish bool) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	s.pushPresence(av)
	s.store.PublishGroup(avId, publish)
}

// RequestGroup validates a direct join against the local cache and relays
// it upward. The store re-validates everything against its authoritative
// state; the local check only avoids doomed round trips.
func (s *Service) RequestGroup(avId common.AvatarID, targetAvId common.AvatarID, force bool) {
	av := s.avatars[avId]
	if av == nil {
		return
	}
	if !s.strongLimiter.Allow(avId) {
		return // silent drop
	}

	ctx := s.newCheckContext(av)
	ctx.Join = true
	ctx.Target = s.GroupOfAvatar(targetAvId)
	ctx.Force = force
	if resp := s.filterer.Run(ctx); resp != group.OK {
		groupType := group.TypeInvalid
		if ctx.Target != nil {
			groupType = ctx.Target.Creation.Type
		}
		s.requestCallback(avId, resp, groupType)
		return
	}

	s.pushPresence(av)
	s.store.RequestGroup(avId, targetAvId)
}

// InviteGetToonData relays an invite request, capped to the per-request
// candidate limit
func (s *Service) InviteGetToonData(avId common.AvatarID, candidates []common.AvatarID) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	if len(candidates) > consts.MAX_INVITES_PER_REQUEST {
		candidates = candidates[:consts.MAX_INVITES_PER_REQUEST]
	}
	s.pushPresence(av)
	s.store.InviteGetToonData(avId, candidates)
}

// RespondToInvite relays an invite response
func (s *Service) RespondToInvite(avId common.AvatarID, inviterAvId common.AvatarID, accept bool) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	s.pushPresence(av)
	s.store.RespondToInvite(avId, inviterAvId, accept)
}

// AskForGroupInfo answers a single group query from the local cache when
// possible, falling back to the store
func (s *Service) AskForGroupInfo(avId common.AvatarID, groupId common.GroupID) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	if g, ok := s.groups[groupId]; ok {
		if client := s.clients[avId]; client != nil {
			client.UpdateGroup(g)
		}
		return
	}
	s.store.AskForGroupInfo(avId, groupId)
}

// RequestGo relays the start-encounter action of the group owner
func (s *Service) RequestGo(avId common.AvatarID) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	s.pushPresence(av)
	s.store.AnnounceBattle(avId)
}

// ModForceDisband gates the moderation action on the avatar's access level
// before relaying. The store re-checks the permission on its own presence
// cache.
func (s *Service) ModForceDisband(avId common.AvatarID, targetAvId common.AvatarID) {
	av := s.avatars[avId]
	if av == nil || !s.limiter.Allow(avId) {
		return
	}
	if av.AccessLevel < common.AccessLevelModerator {
		gwlog.Errorf("%s: SUSPICIOUS avatar %d attempted mod force disband of %d", s, avId, targetAvId)
		return
	}
	s.pushPresence(av)
	s.store.ModForceDisband(avId, targetAvId)
}

// ValidateInvited answers the store's invite validation query: each
// candidate is run through the same eligibility chain as creates and joins,
// against the inviter's group.
func (s *Service) ValidateInvited(inviterAvId common.AvatarID, candidates []common.AvatarID) {
	target := s.GroupOfAvatar(inviterAvId)
	if target == nil {
		gwlog.Warnf("%s.ValidateInvited: inviter %d has no cached group", s, inviterAvId)
		return
	}

	validated := make([]common.AvatarID, 0, len(candidates))
	for _, candidate := range candidates {
		av := s.avatars[candidate]
		if av == nil {
			continue // not on this district
		}
		ctx := s.newCheckContext(av)
		ctx.Join = true
		ctx.Target = target
		ctx.Force = true // invites may enter unpublished groups
		if s.filterer.Run(ctx) == group.OK {
			validated = append(validated, candidate)
		}
	}

	if len(validated) > 0 {
		s.store.InviteQueryResponse(inviterAvId, validated)
	}
}

// ReceiveAllGroups replaces the whole group cache with the store broadcast
// and rebuilds the avatar index from scratch, then refreshes the joinable
// snapshot of every attached client
func (s *Service) ReceiveAllGroups(groups []*group.Group) {
	s.groups = make(map[common.GroupID]*group.Group, len(groups))
	s.avatarGroups = make(map[common.AvatarID]common.GroupID, len(groups))
	for _, g := range groups {
		s.groups[g.Id] = g
		for _, av := range g.Avatars {
			s.avatarGroups[av.AvId] = g.Id
		}
	}
	gwlog.Debugf("%s: cache replaced, %d groups", s, len(s.groups))

	joinable := s.joinableGroups()
	for _, client := range s.clients {
		client.ReceiveAllGroups(joinable)
	}
}

func (s *Service) joinableGroups() []*group.Group {
	joinable := make([]*group.Group, 0, len(s.groups))
	for _, g := range s.groups {
		if g.Published && !g.AnnouncedBattle {
			joinable = append(joinable, g)
		}
	}
	return joinable
}

// UpdateGroup upserts one group record pushed by the store and forwards it
// to the local avatars it concerns
func (s *Service) UpdateGroup(avIds []common.AvatarID, g *group.Group) {
	if old, ok := s.groups[g.Id]; ok {
		for _, av := range old.Avatars {
			delete(s.avatarGroups, av.AvId)
		}
	}
	s.groups[g.Id] = g
	for _, av := range g.Avatars {
		s.avatarGroups[av.AvId] = g.Id
	}

	for _, avId := range avIds {
		if client := s.clients[avId]; client != nil {
			client.UpdateGroup(g)
		}
	}
}

// GroupLeaveResponse forwards a leave push to the avatar and drops its
// index entry eagerly
func (s *Service) GroupLeaveResponse(avId common.AvatarID, reason group.Response, notify bool) {
	delete(s.avatarGroups, avId)
	if client := s.clients[avId]; client != nil {
		client.GroupLeaveResponse(reason, notify)
	}
}

func (s *Service) requestCallback(avId common.AvatarID, errCode group.Response, groupType group.Type) {
	if client := s.clients[avId]; client != nil {
		client.RequestGroupCallback(errCode, groupType)
	}
}

// RequestGroupCallback forwards a join answer from the store
func (s *Service) RequestGroupCallback(avId common.AvatarID, errCode group.Response, groupType group.Type) {
	s.requestCallback(avId, errCode, groupType)
}

// ReceiveNotification forwards a notification push from the store
func (s *Service) ReceiveNotification(avId common.AvatarID, code group.Response, arg int) {
	if client := s.clients[avId]; client != nil {
		client.ReceiveNotification(code, arg)
	}
}

// ReceiveInvite forwards an invite push to the invited avatar
func (s *Service) ReceiveInvite(invited common.AvatarID, inviter common.AvatarID, inviterName string, groupType group.Type) {
	if client := s.clients[invited]; client != nil {
		client.ReceiveInvite(inviter, inviterName, groupType)
	}
}

// HandleStoreConnected runs whenever the store connection is (re)opened.
// The local cache is stale at this point, so it is dropped outright: every
// client treats its own group as gone and recreates, and every online
// avatar's presence is re-pushed so the store's next broadcast repopulates
// the cache correctly. Rebuild from source of truth, never reconcile.
func (s *Service) HandleStoreConnected() {
	s.groups = map[common.GroupID]*group.Group{}
	s.avatarGroups = map[common.AvatarID]common.GroupID{}

	for _, client := range s.clients {
		client.ManagerReloaded()
	}
	for _, av := range s.avatars {
		s.pushPresence(av)
	}
	gwlog.Infof("%s: store connection established, presence of %d avatars re-pushed", s, len(s.avatars))
}
