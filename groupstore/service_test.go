package groupstore

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/config"
	"github.com/tooniverse/groupworld/group"
)

const testDistrict common.DistrictID = 401000000

type leaveCall struct {
	avId   common.AvatarID
	reason group.Response
	notify bool
}

type callbackCall struct {
	avId      common.AvatarID
	errCode   group.Response
	groupType group.Type
}

type notifyCall struct {
	avId common.AvatarID
	code group.Response
	arg  int
}

type validateCall struct {
	inviter    common.AvatarID
	candidates []common.AvatarID
}

type inviteCall struct {
	invited common.AvatarID
	inviter common.AvatarID
}

type fakeAI struct {
	district      common.DistrictID
	broadcasts    [][]*group.Group
	updates       int
	leaves        []leaveCall
	callbacks     []callbackCall
	notifications []notifyCall
	validations   []validateCall
	invites       []inviteCall
}

func (ai *fakeAI) DistrictId() common.DistrictID { return ai.district }

func (ai *fakeAI) ReceiveAllGroups(groups []*group.Group) {
	ai.broadcasts = append(ai.broadcasts, groups)
}

func (ai *fakeAI) UpdateGroup(avIds []common.AvatarID, g *group.Group) {
	ai.updates++
}

func (ai *fakeAI) GroupLeaveResponse(avId common.AvatarID, reason group.Response, notify bool) {
	ai.leaves = append(ai.leaves, leaveCall{avId, reason, notify})
}

func (ai *fakeAI) RequestGroupCallback(avId common.AvatarID, errCode group.Response, groupType group.Type) {
	ai.callbacks = append(ai.callbacks, callbackCall{avId, errCode, groupType})
}

func (ai *fakeAI) ReceiveNotification(avId common.AvatarID, code group.Response, arg int) {
	ai.notifications = append(ai.notifications, notifyCall{avId, code, arg})
}

func (ai *fakeAI) ValidateInvited(inviter common.AvatarID, candidates []common.AvatarID) {
	ai.validations = append(ai.validations, validateCall{inviter, candidates})
}

func (ai *fakeAI) ReceiveInvite(invited common.AvatarID, inviter common.AvatarID, inviterName string, groupType group.Type) {
	ai.invites = append(ai.invites, inviteCall{invited, inviter})
}

func (ai *fakeAI) lastCallback(t *testing.T) callbackCall {
	if len(ai.callbacks) == 0 {
		t.Fatal("no request group callbacks received")
	}
	return ai.callbacks[len(ai.callbacks)-1]
}

func newTestService() (*Service, *fakeAI) {
	cfg := &config.GroupStoreConfig{
		BroadcastInterval: time.Second * 15,
		OfflineGrace:      time.Second * 30,
	}
	s := NewService(cfg)
	ai := &fakeAI{district: testDistrict}
	s.RegisterAI(ai)
	return s, ai
}

func addToon(s *Service, avId common.AvatarID, name string, zone common.ZoneID) {
	s.UpdateToon(ToonInfo{
		AvId:        avId,
		Name:        name,
		ZoneId:      zone,
		DistrictId:  testDistrict,
		Hp:          100,
		MaxHp:       120,
		Level:       30,
		AccessLevel: common.AccessLevelPlayer,
	})
}

func raidCreation() group.Creation {
	return group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}
}

// assertSingleMembership checks the cluster-wide invariant: no avatar holds
// a non-reserved membership in more than one group.
func assertSingleMembership(t *testing.T, s *Service) {
	seen := common.AvatarIDSet{}
	for _, g := range s.Groups() {
		if len(g.Avatars) > g.Creation.Size {
			t.Fatalf("%s exceeds its capacity", g)
		}
		if len(g.Avatars) > 0 && g.Owner() != g.Avatars[0].AvId {
			t.Fatalf("%s owner is not the first member", g)
		}
		for _, av := range g.Avatars {
			if av.Reserved {
				continue
			}
			if seen.Contains(av.AvId) {
				t.Fatalf("avatar %d is a member of two groups", av.AvId)
			}
			seen.Add(av.AvId)
		}
	}
}

func TestCreateGroup(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)

	s.CreateGroup(1001, raidCreation(), true)

	g := s.GroupOfAvatar(1001)
	if g == nil {
		t.Fatal("group not created")
	}
	assert.T(t, !g.Id.IsNil(), "group id not allocated")
	assert.Equal(t, true, g.Published)
	assert.Equal(t, testDistrict, g.DistrictId)
	assert.Equal(t, common.ZoneID(10100), g.ZoneId)
	assert.Equal(t, 1, len(g.Avatars))
	assert.Equal(t, common.AvatarID(1001), g.Owner())
	assert.Equal(t, false, g.Avatars[0].Reserved)

	// join confirmation notification
	assert.Equal(t, notifyCall{1001, group.GroupJoined, int(group.TypeBossRaid)}, ai.notifications[0])
	assertSingleMembership(t, s)
}

func TestCreateGroupWhileMemberIsNoOp(t *testing.T) {
	s, _ := newTestService()
	addToon(s, 1001, "flippy", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	first := s.GroupOfAvatar(1001)

	s.CreateGroup(1001, raidCreation(), false)
	assert.Equal(t, 1, len(s.Groups()))
	assert.Equal(t, first, s.GroupOfAvatar(1001))
}

func TestCreateGroupWithoutPresenceIsNoOp(t *testing.T) {
	s, _ := newTestService()
	s.CreateGroup(9999, raidCreation(), true)
	assert.Equal(t, 0, len(s.Groups()))
}

func TestOwnerInviteAccept(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)

	s.InviteGetToonData(1001, []common.AvatarID{1002})
	assert.Equal(t, 1, len(ai.validations))
	assert.Equal(t, validateCall{1001, []common.AvatarID{1002}}, ai.validations[0])

	// the coordinator validated the candidate
	s.InviteQueryResponse(1001, []common.AvatarID{1002})
	g := s.GroupOfAvatar(1001)
	member := g.Member(1002)
	if member == nil {
		t.Fatal("owner invite should reserve a slot immediately")
	}
	assert.Equal(t, true, member.Reserved)
	assert.Equal(t, inviteCall{1002, 1001}, ai.invites[0])

	s.RespondToInvite(1002, 1001, true)
	member = g.Member(1002)
	assert.Equal(t, false, member.Reserved)
	assert.Equal(t, group.StatusJoined, member.Status)
	assert.Equal(t, 2, len(g.Avatars))

	// the invite edge is gone: responding again reports expiry
	s.RespondToInvite(1002, 1001, true)
	last := ai.notifications[len(ai.notifications)-1]
	assert.Equal(t, common.AvatarID(1002), last.avId)
	assert.Equal(t, group.InviteExpired, last.code)
	assertSingleMembership(t, s)
}

func TestInviteDeclineReleasesReservation(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.InviteQueryResponse(1001, []common.AvatarID{1002})

	g := s.GroupOfAvatar(1001)
	assert.Equal(t, 2, len(g.Avatars))

	s.RespondToInvite(1002, 1001, false)
	assert.Equal(t, 1, len(g.Avatars))
	if s.GroupOfAvatar(1002) != nil {
		t.Fatal("declined avatar should hold no membership")
	}

	declined := ai.notifications[len(ai.notifications)-1]
	assert.Equal(t, common.AvatarID(1001), declined.avId)
	assert.Equal(t, group.InviteDeclined, declined.code)
}

func TestNonOwnerInviteDoesNotReserve(t *testing.T) {
	s, _ := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	addToon(s, 1003, "clerk", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.InviteQueryResponse(1001, []common.AvatarID{1002})
	s.RespondToInvite(1002, 1001, true)

	// the non-owner member vouches for a third avatar
	s.InviteQueryResponse(1002, []common.AvatarID{1003})
	g := s.GroupOfAvatar(1001)
	if g.Member(1003) != nil {
		t.Fatal("non-owner invite must not reserve a slot")
	}

	s.RespondToInvite(1003, 1002, true)
	member := g.Member(1003)
	if member == nil {
		t.Fatal("accepted invite should admit the avatar")
	}
	assert.Equal(t, false, member.Reserved)
	assertSingleMembership(t, s)
}

func TestInviteAcceptAfterJoiningElsewhere(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	addToon(s, 1003, "clerk", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.CreateGroup(1002, raidCreation(), true)

	// 1002 invites 1003, reserving a slot in 1002's group
	s.InviteQueryResponse(1002, []common.AvatarID{1003})

	// 1003 joins 1001's group instead; the stray reservation is cleared
	s.RequestGroup(1003, 1001)
	assert.Equal(t, group.OK, ai.lastCallback(t).errCode)

	// accepting the still-live invite must not create a second membership
	s.RespondToInvite(1003, 1002, true)
	assert.Equal(t, group.AlreadyInGroup, ai.lastCallback(t).errCode)

	g1 := s.GroupOfAvatar(1001)
	g2 := s.GroupOfAvatar(1002)
	assert.Equal(t, 2, len(g1.Avatars))
	assert.Equal(t, 1, len(g2.Avatars))
	assertSingleMembership(t, s)
}

func TestInviteSkipsMembersOfOtherGroups(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.CreateGroup(1002, raidCreation(), true)

	// 1002 already owns a group: no reservation, no invite edge
	s.InviteQueryResponse(1001, []common.AvatarID{1002})

	g1 := s.GroupOfAvatar(1001)
	assert.Equal(t, 1, len(g1.Avatars))
	assert.Equal(t, 0, len(ai.invites))
	if _, ok := s.invites[1001]; ok {
		t.Fatal("no invite edge should be recorded for a member of another group")
	}
	assertSingleMembership(t, s)
}

func TestRequestGroupAlreadyInGroup(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.CreateGroup(1002, raidCreation(), true)

	g1 := s.GroupOfAvatar(1001)
	g2 := s.GroupOfAvatar(1002)

	s.RequestGroup(1002, 1001)
	assert.Equal(t, callbackCall{1002, group.AlreadyInGroup, group.TypeBossRaid}, ai.lastCallback(t))
	assert.Equal(t, 1, len(g1.Avatars))
	assert.Equal(t, 1, len(g2.Avatars))
	assertSingleMembership(t, s)
}

func TestRequestGroupChecks(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)

	// nonexistent target group
	s.RequestGroup(1002, 1001)
	assert.Equal(t, group.GroupNonexistent, ai.lastCallback(t).errCode)

	s.CreateGroup(1001, raidCreation(), false)

	// unpublished group
	s.RequestGroup(1002, 1001)
	assert.Equal(t, group.GroupNotPublic, ai.lastCallback(t).errCode)

	s.PublishGroup(1001, true)
	s.RequestGroup(1002, 1001)
	assert.Equal(t, group.OK, ai.lastCallback(t).errCode)

	// kicked avatars cannot re-join this group instance
	s.KickPlayer(1001, 1002)
	s.RequestGroup(1002, 1001)
	assert.Equal(t, group.KickedFromGroup, ai.lastCallback(t).errCode)
	assertSingleMembership(t, s)
}

func TestRequestGroupFilledUp(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	creation := group.Creation{Type: group.TypeFacility, Options: []int{0, 0}, Size: 2}
	s.CreateGroup(1001, creation, true)

	addToon(s, 1002, "barnacle", 11200)
	addToon(s, 1003, "clerk", 11200)
	s.RequestGroup(1002, 1001)
	assert.Equal(t, group.OK, ai.lastCallback(t).errCode)

	s.RequestGroup(1003, 1001)
	assert.Equal(t, group.GroupFilledUp, ai.lastCallback(t).errCode)
	assertSingleMembership(t, s)
}

func TestDisbandGroup(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.RequestGroup(1002, 1001)

	s.DisbandGroup(1001)

	assert.Equal(t, 2, len(ai.leaves))
	for _, leave := range ai.leaves {
		assert.Equal(t, group.LeaveDisbanded, leave.reason)
	}
	assert.Equal(t, 0, len(s.Groups()))

	// the freed id pool accepts a new group
	s.CreateGroup(1001, raidCreation(), true)
	if s.GroupOfAvatar(1001) == nil {
		t.Fatal("create after disband failed")
	}
}

func TestOwnerLeaveDisbands(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.RequestGroup(1002, 1001)

	s.LeaveGroup(1001)
	assert.Equal(t, 0, len(s.Groups()))
	assert.Equal(t, 2, len(ai.leaves))
}

func TestMemberLeaveKeepsGroup(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.RequestGroup(1002, 1001)

	s.LeaveGroup(1002)
	g := s.GroupOfAvatar(1001)
	assert.Equal(t, 1, len(g.Avatars))
	assert.Equal(t, leaveCall{1002, group.LeaveVoluntary, false}, ai.leaves[0])
	if s.GroupOfAvatar(1002) != nil {
		t.Fatal("leaver should hold no membership")
	}
}

func TestZoneConsistencyDisband(t *testing.T) {
	s, _ := newTestService()
	addToon(s, 1001, "flippy", 10100)
	s.CreateGroup(1001, raidCreation(), true) // boss raids force a constant zone

	// a member's zone change does not matter, only the owner's
	addToon(s, 1002, "barnacle", 10100)
	s.RequestGroup(1002, 1001)
	s.AvatarChangedZone(1002, 2000, 10100)
	assert.Equal(t, 1, len(s.Groups()))

	s.AvatarChangedZone(1001, 2000, 10100)
	assert.Equal(t, 0, len(s.Groups()))
}

func TestZoneConsistencyFullHood(t *testing.T) {
	s, _ := newTestService()
	addToon(s, 1001, "flippy", 11200)
	creation := group.Creation{Type: group.TypeFacility, Options: []int{0, 0}, Size: 2}
	s.CreateGroup(1001, creation, true)

	// facility groups allow roaming the full hood
	s.AvatarChangedZone(1001, 11250, 11200)
	assert.Equal(t, 1, len(s.Groups()))

	// but not a different hood
	s.AvatarChangedZone(1001, 12250, 11250)
	assert.Equal(t, 0, len(s.Groups()))
}

func TestAnnounceBattle(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.InviteQueryResponse(1001, []common.AvatarID{1002}) // reserved, unresolved

	s.AnnounceBattle(1001)
	g := s.GroupOfAvatar(1001)
	assert.Equal(t, true, g.AnnouncedBattle)
	assert.Equal(t, false, g.Published)
	assert.Equal(t, 1, len(g.Avatars)) // the reservation was evicted

	// publishing after the announce is refused
	s.PublishGroup(1001, true)
	assert.Equal(t, false, g.Published)

	// further joins are refused
	addToon(s, 1003, "clerk", 10100)
	s.RequestGroup(1003, 1001)
	assert.Equal(t, group.GroupNotAvailable, ai.lastCallback(t).errCode)

	// announcing twice is a no-op
	updatesBefore := ai.updates
	s.AnnounceBattle(1001)
	assert.Equal(t, updatesBefore, ai.updates)
}

func TestOfflineGraceCancel(t *testing.T) {
	s, _ := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.RequestGroup(1002, 1001)

	s.ToonOffline(1002)
	assert.T(t, s.PendingOfflineCleanup(1002), "cleanup should be pending")

	// the avatar reconnects within the grace window
	addToon(s, 1002, "barnacle", 10100)
	assert.T(t, !s.PendingOfflineCleanup(1002), "cleanup should be canceled")

	g := s.GroupOfAvatar(1001)
	if g.Member(1002) == nil {
		t.Fatal("membership should be unaffected by a quick reconnect")
	}
}

func TestOfflineExpiryMemberRemoved(t *testing.T) {
	s, _ := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.RequestGroup(1002, 1001)

	s.ToonOffline(1002)
	s.HandleOfflineExpired(1002)

	g := s.GroupOfAvatar(1001)
	assert.Equal(t, 1, len(g.Avatars))
	if s.GetToon(1002) != nil {
		t.Fatal("presence should be deleted after grace expiry")
	}
}

func TestOfflineExpiryOwnerDisbands(t *testing.T) {
	s, _ := newTestService()
	addToon(s, 1001, "flippy", 10100)
	addToon(s, 1002, "barnacle", 10100)
	addToon(s, 1003, "clerk", 10100)
	s.CreateGroup(1001, raidCreation(), true)
	s.RequestGroup(1002, 1001)
	s.InviteQueryResponse(1001, []common.AvatarID{1003})

	s.ToonOffline(1001)
	s.HandleOfflineExpired(1001)

	assert.Equal(t, 0, len(s.Groups()))
	if _, ok := s.invites[1001]; ok {
		t.Fatal("invite edges of the offline avatar should be cleaned up")
	}
}

func TestModForceDisband(t *testing.T) {
	s, _ := newTestService()
	addToon(s, 1001, "flippy", 10100)
	s.CreateGroup(1001, raidCreation(), true)

	// a plain player must be refused
	addToon(s, 1002, "barnacle", 10100)
	s.ModForceDisband(1002, 1001)
	assert.Equal(t, 1, len(s.Groups()))

	s.UpdateToon(ToonInfo{AvId: 9001, Name: "mod", ZoneId: 2000, DistrictId: testDistrict, AccessLevel: common.AccessLevelModerator})
	s.ModForceDisband(9001, 1001)
	assert.Equal(t, 0, len(s.Groups()))
}

func TestCoordinatorUnregisterDrainsDistrict(t *testing.T) {
	s, ai := newTestService()
	addToon(s, 1001, "flippy", 10100)
	s.CreateGroup(1001, raidCreation(), true)

	s.UnregisterAI(ai)
	assert.T(t, s.PendingOfflineCleanup(1001), "district avatars should enter the grace window")
}
