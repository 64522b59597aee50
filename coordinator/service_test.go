package coordinator

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/engine/config"
	"github.com/tooniverse/groupworld/group"
)

type storeCall struct {
	op   string
	avId common.AvatarID
}

type fakeStore struct {
	calls     []storeCall
	validated [][]common.AvatarID
}

func (st *fakeStore) record(op string, avId common.AvatarID) {
	st.calls = append(st.calls, storeCall{op, avId})
}

func (st *fakeStore) UpdateToon(av *Avatar) { st.record("updateToon", av.AvId) }
func (st *fakeStore) ToonOffline(avId common.AvatarID) {
	st.record("toonOffline", avId)
}
func (st *fakeStore) AvatarChangedZone(avId common.AvatarID, newZone common.ZoneID, oldZone common.ZoneID) {
	st.record("avatarChangedZone", avId)
}
func (st *fakeStore) CreateGroup(avId common.AvatarID, creation group.Creation, published bool) {
	st.record("createGroup", avId)
}
func (st *fakeStore) UpdateGroupSettings(avId common.AvatarID, options []int) {
	st.record("updateGroupSettings", avId)
}
func (st *fakeStore) DisbandGroup(avId common.AvatarID) { st.record("disbandGroup", avId) }
func (st *fakeStore) DisbandToonGroup(avId common.AvatarID, reason group.Response) {
	st.record("disbandToonGroup", avId)
}
func (st *fakeStore) LeaveGroup(avId common.AvatarID) { st.record("leaveGroup", avId) }
func (st *fakeStore) KickPlayer(avId common.AvatarID, targetAvId common.AvatarID) {
	st.record("kickPlayer", avId)
}
func (st *fakeStore) PublishGroup(avId common.AvatarID, publish bool) {
	st.record("publishGroup", avId)
}
func (st *fakeStore) RequestGroup(avId common.AvatarID, targetAvId common.AvatarID) {
	st.record("requestGroup", avId)
}
func (st *fakeStore) InviteGetToonData(avId common.AvatarID, candidates []common.AvatarID) {
	st.record("inviteGetToonData", avId)
}
func (st *fakeStore) InviteQueryResponse(avId common.AvatarID, validated []common.AvatarID) {
	st.record("inviteQueryResponse", avId)
	st.validated = append(st.validated, validated)
}
func (st *fakeStore) RespondToInvite(avId common.AvatarID, inviterAvId common.AvatarID, accept bool) {
	st.record("respondToInvite", avId)
}
func (st *fakeStore) AskForGroupInfo(avId common.AvatarID, groupId common.GroupID) {
	st.record("askForGroupInfo", avId)
}
func (st *fakeStore) AnnounceBattle(avId common.AvatarID) { st.record("announceBattle", avId) }
func (st *fakeStore) ModForceDisband(avId common.AvatarID, targetAvId common.AvatarID) {
	st.record("modForceDisband", avId)
}

func (st *fakeStore) ops() []string {
	ops := make([]string, len(st.calls))
	for i, c := range st.calls {
		ops[i] = c.op
	}
	return ops
}

type fakeClient struct {
	avId      common.AvatarID
	snapshots [][]*group.Group
	updates   []*group.Group
	leaves    []group.Response
	callbacks []group.Response
	notifies  []group.Response
	invites   []common.AvatarID
	reloads   int
}

func (c *fakeClient) AvatarId() common.AvatarID { return c.avId }
func (c *fakeClient) ReceiveAllGroups(groups []*group.Group) {
	c.snapshots = append(c.snapshots, groups)
}
func (c *fakeClient) UpdateGroup(g *group.Group) { c.updates = append(c.updates, g) }
func (c *fakeClient) GroupLeaveResponse(reason group.Response, notify bool) {
	c.leaves = append(c.leaves, reason)
}
func (c *fakeClient) RequestGroupCallback(errCode group.Response, groupType group.Type) {
	c.callbacks = append(c.callbacks, errCode)
}
func (c *fakeClient) ReceiveNotification(code group.Response, arg int) {
	c.notifies = append(c.notifies, code)
}
func (c *fakeClient) ReceiveInvite(inviter common.AvatarID, inviterName string, groupType group.Type) {
	c.invites = append(c.invites, inviter)
}
func (c *fakeClient) ManagerReloaded() { c.reloads++ }

func testCoordConfig() *config.CoordinatorConfig {
	return &config.CoordinatorConfig{
		DistrictId:       401000000,
		DistrictName:     "Splashport",
		StrongRateMax:    4,
		StrongRatePeriod: time.Second * 10,
		RateMax:          8,
		RatePeriod:       time.Second * 5,
	}
}

func newTestCoordinator() (*Service, *fakeStore) {
	st := &fakeStore{}
	return NewService(testCoordConfig(), st), st
}

func attach(s *Service, avId common.AvatarID) *fakeClient {
	client := &fakeClient{avId: avId}
	s.AttachClient(client, Avatar{AvId: avId, Name: "flippy", ZoneId: 10100, AccessLevel: common.AccessLevelPlayer})
	return client
}

func storeGroup(id common.GroupID, ownerAvId common.AvatarID, published bool) *group.Group {
	g := &group.Group{
		Id:        id,
		Creation:  group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4},
		Published: published,
		ZoneId:    10100,
	}
	g.AddAvatar(ownerAvId, "owner", false)
	return g
}

func TestAttachPushesPresence(t *testing.T) {
	s, st := newTestCoordinator()
	attach(s, 1001)
	assert.Equal(t, []string{"updateToon"}, st.ops())
	assert.Equal(t, 1, s.Population())
}

func TestDetachSignalsOffline(t *testing.T) {
	s, st := newTestCoordinator()
	attach(s, 1001)
	s.DetachClient(1001)
	assert.Equal(t, []string{"updateToon", "toonOffline"}, st.ops())
	assert.Equal(t, 0, s.Population())

	// detaching an unknown avatar does nothing
	s.DetachClient(9999)
	assert.Equal(t, 2, len(st.calls))
}

func TestCreateGroupRelaysAfterPresencePush(t *testing.T) {
	s, st := newTestCoordinator()
	attach(s, 1001)
	st.calls = nil

	s.CreateGroup(1001, group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}, true, false)
	assert.Equal(t, []string{"updateToon", "createGroup"}, st.ops())
}

func TestCreateGroupLocalReject(t *testing.T) {
	s, st := newTestCoordinator()
	client := attach(s, 1001)
	st.calls = nil

	s.CreateGroup(1001, group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 5}, true, false)
	assert.Equal(t, 0, len(st.calls))
	assert.Equal(t, []group.Response{group.InvalidCreation}, client.callbacks)
}

func TestStrongRateLimitSilentDrop(t *testing.T) {
	s, st := newTestCoordinator()
	client := attach(s, 1001)
	st.calls = nil

	creation := group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}
	for i := 0; i < 6; i++ {
		s.CreateGroup(1001, creation, true, false)
	}

	// 4 relayed, the rest dropped with no feedback at all
	relays := 0
	for _, c := range st.calls {
		if c.op == "createGroup" {
			relays++
		}
	}
	assert.Equal(t, 4, relays)
	assert.Equal(t, 0, len(client.callbacks))
	assert.Equal(t, 0, len(client.notifies))
}

func TestRequestGroupLocalChecks(t *testing.T) {
	s, st := newTestCoordinator()
	client := attach(s, 1001)
	st.calls = nil

	// nothing cached for the target avatar
	s.RequestGroup(1001, 2000, false)
	assert.Equal(t, 0, len(st.calls))
	assert.Equal(t, []group.Response{group.GroupNonexistent}, client.callbacks)

	s.ReceiveAllGroups([]*group.Group{storeGroup(7, 2000, true)})
	s.RequestGroup(1001, 2000, false)
	assert.Equal(t, []string{"updateToon", "requestGroup"}, st.ops())
}

func TestReceiveAllGroupsReplacesCache(t *testing.T) {
	s, _ := newTestCoordinator()
	client := attach(s, 1001)

	s.ReceiveAllGroups([]*group.Group{storeGroup(7, 2000, true), storeGroup(8, 2001, false)})
	if s.GroupOfAvatar(2000) == nil || s.GroupOfAvatar(2001) == nil {
		t.Fatal("avatar index not built from broadcast")
	}
	// only published groups are in the joinable snapshot
	assert.Equal(t, 1, len(client.snapshots[0]))
	assert.Equal(t, common.GroupID(7), client.snapshots[0][0].Id)

	// the next broadcast replaces everything, no merging
	s.ReceiveAllGroups([]*group.Group{storeGroup(9, 2002, true)})
	if s.GroupOfAvatar(2000) != nil {
		t.Fatal("stale cache entry survived the broadcast")
	}
	if s.GroupOfAvatar(2002) == nil {
		t.Fatal("new cache entry missing")
	}
}

func TestUpdateGroupReindexes(t *testing.T) {
	s, _ := newTestCoordinator()
	client := attach(s, 1001)

	g := storeGroup(7, 2000, true)
	g.AddAvatar(1001, "flippy", false)
	s.UpdateGroup([]common.AvatarID{2000, 1001}, g)
	assert.Equal(t, 1, len(client.updates))
	assert.Equal(t, common.GroupID(7), s.GroupOfAvatar(1001).Id)

	// the avatar left; its index entry must go with the update
	g2 := storeGroup(7, 2000, true)
	s.UpdateGroup([]common.AvatarID{2000}, g2)
	if s.GroupOfAvatar(1001) != nil {
		t.Fatal("stale index entry after member left")
	}
}

func TestValidateInvitedFilters(t *testing.T) {
	s, st := newTestCoordinator()
	attach(s, 1001)
	attach(s, 1002)
	st.calls = nil

	target := storeGroup(7, 2000, false) // invites may enter unpublished groups
	target.KickedAvIds = append(target.KickedAvIds, 1002)
	s.ReceiveAllGroups([]*group.Group{target})

	// 1003 is not attached to this district, 1002 was kicked
	s.ValidateInvited(2000, []common.AvatarID{1001, 1002, 1003})
	assert.Equal(t, 1, len(st.validated))
	assert.Equal(t, []common.AvatarID{1001}, st.validated[0])
}

func TestValidateInvitedNoCandidates(t *testing.T) {
	s, st := newTestCoordinator()
	st.calls = nil

	s.ReceiveAllGroups([]*group.Group{storeGroup(7, 2000, true)})
	s.ValidateInvited(2000, []common.AvatarID{1003})
	for _, c := range st.calls {
		assert.NotEqual(t, "inviteQueryResponse", c.op)
	}
}

func TestModForceDisbandGate(t *testing.T) {
	s, st := newTestCoordinator()
	attach(s, 1001)
	st.calls = nil

	s.ModForceDisband(1001, 2000)
	assert.Equal(t, 0, len(st.calls))

	mod := &fakeClient{avId: 9001}
	s.AttachClient(mod, Avatar{AvId: 9001, Name: "mod", AccessLevel: common.AccessLevelModerator})
	st.calls = nil
	s.ModForceDisband(9001, 2000)
	assert.Equal(t, []string{"updateToon", "modForceDisband"}, st.ops())
}

func TestStoreReconnectRebuildsFromTruth(t *testing.T) {
	s, st := newTestCoordinator()
	client1 := attach(s, 1001)
	client2 := attach(s, 1002)
	s.ReceiveAllGroups([]*group.Group{storeGroup(7, 1001, true)})
	st.calls = nil

	s.HandleStoreConnected()

	assert.Equal(t, 1, client1.reloads)
	assert.Equal(t, 1, client2.reloads)
	if s.GroupOfAvatar(1001) != nil {
		t.Fatal("cache should be dropped on store reconnect")
	}

	// every attached avatar's presence is re-pushed
	pushes := 0
	for _, c := range st.calls {
		if c.op == "updateToon" {
			pushes++
		}
	}
	assert.Equal(t, 2, pushes)
}

func TestForwardPushes(t *testing.T) {
	s, _ := newTestCoordinator()
	client := attach(s, 1001)

	s.RequestGroupCallback(1001, group.GroupFilledUp, group.TypeBossRaid)
	s.ReceiveNotification(1001, group.GroupJoined, 1)
	s.ReceiveInvite(1001, 2000, "owner", group.TypeBossRaid)
	s.GroupLeaveResponse(1001, group.LeaveKicked, true)

	assert.Equal(t, []group.Response{group.GroupFilledUp}, client.callbacks)
	assert.Equal(t, []group.Response{group.GroupJoined}, client.notifies)
	assert.Equal(t, []common.AvatarID{2000}, client.invites)
	assert.Equal(t, []group.Response{group.LeaveKicked}, client.leaves)

	// pushes for avatars of other districts are ignored
	s.ReceiveNotification(9999, group.GroupJoined, 1)
	assert.Equal(t, 1, len(client.notifies))
}

func TestDrainingRejectsCreate(t *testing.T) {
	s, st := newTestCoordinator()
	client := attach(s, 1001)
	st.calls = nil

	s.SetDraining(true)
	s.CreateGroup(1001, group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}, true, false)
	assert.Equal(t, 0, len(st.calls))
	assert.Equal(t, []group.Response{group.DistrictDraining}, client.callbacks)
}
