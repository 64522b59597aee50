package coordinator

import (
	"testing"

	"github.com/bmizerany/assert"

	"github.com/tooniverse/groupworld/engine/common"
	"github.com/tooniverse/groupworld/group"
)

func testAvatar(avId common.AvatarID) *Avatar {
	return &Avatar{AvId: avId, Name: "flippy", ZoneId: 10100}
}

func TestFiltererCreate(t *testing.T) {
	f := NewFilterer()
	av := testAvatar(1001)

	ctx := &CheckContext{Avatar: av, Creation: group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}}
	assert.Equal(t, group.OK, f.Run(ctx))

	ctx = &CheckContext{Avatar: av, Creation: group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 5}}
	assert.Equal(t, group.InvalidCreation, f.Run(ctx))
}

func TestFiltererAlreadyInGroup(t *testing.T) {
	f := NewFilterer()
	av := testAvatar(1001)
	own := &group.Group{Id: 7, Creation: group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}}
	own.AddAvatar(av.AvId, av.Name, false)

	ctx := &CheckContext{Avatar: av, OwnGroup: own, Creation: group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}}
	assert.Equal(t, group.AlreadyInGroup, f.Run(ctx))

	// a reservation is not a blocking membership
	reserved := &group.Group{Id: 8, Creation: group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}}
	reserved.AddAvatar(2000, "owner", false)
	reserved.AddAvatar(av.AvId, av.Name, true)
	ctx = &CheckContext{Avatar: av, OwnGroup: reserved, Creation: group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}}
	assert.Equal(t, group.OK, f.Run(ctx))
}

func TestFiltererJoin(t *testing.T) {
	f := NewFilterer()
	av := testAvatar(1001)

	// nonexistent target
	ctx := &CheckContext{Avatar: av, Join: true}
	assert.Equal(t, group.GroupNonexistent, f.Run(ctx))

	target := &group.Group{Id: 7, Creation: group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}}
	target.AddAvatar(2000, "owner", false)

	// unpublished
	ctx = &CheckContext{Avatar: av, Join: true, Target: target}
	assert.Equal(t, group.GroupNotPublic, f.Run(ctx))

	// force bypasses the published check only
	ctx = &CheckContext{Avatar: av, Join: true, Target: target, Force: true}
	assert.Equal(t, group.OK, f.Run(ctx))

	target.Published = true
	ctx = &CheckContext{Avatar: av, Join: true, Target: target}
	assert.Equal(t, group.OK, f.Run(ctx))

	// kicked before
	target.KickedAvIds = append(target.KickedAvIds, av.AvId)
	ctx = &CheckContext{Avatar: av, Join: true, Target: target}
	assert.Equal(t, group.KickedFromGroup, f.Run(ctx))
	target.KickedAvIds = nil

	// battle announced beats all other join checks
	target.AnnouncedBattle = true
	ctx = &CheckContext{Avatar: av, Join: true, Target: target, Force: true}
	assert.Equal(t, group.GroupNotAvailable, f.Run(ctx))
	target.AnnouncedBattle = false

	// filled up
	target.AddAvatar(2001, "a", false)
	target.AddAvatar(2002, "b", false)
	target.AddAvatar(2003, "c", false)
	ctx = &CheckContext{Avatar: av, Join: true, Target: target}
	assert.Equal(t, group.GroupFilledUp, f.Run(ctx))
}

func TestFiltererCapacityIgnoresOwnReservation(t *testing.T) {
	f := NewFilterer()
	av := testAvatar(1001)

	target := &group.Group{Id: 7, Creation: group.Creation{Type: group.TypeFacility, Options: []int{0, 0}, Size: 2}, Published: true}
	target.AddAvatar(2000, "owner", false)
	target.AddAvatar(av.AvId, av.Name, true)

	ctx := &CheckContext{Avatar: av, Join: true, Target: target, OwnGroup: target}
	assert.Equal(t, group.OK, f.Run(ctx))
}

func TestFiltererDistrict(t *testing.T) {
	f := NewFilterer()
	av := testAvatar(1001)
	creation := group.Creation{Type: group.TypeBossRaid, Options: []int{1}, Size: 4}

	ctx := &CheckContext{Avatar: av, Creation: creation, Draining: true}
	assert.Equal(t, group.DistrictDraining, f.Run(ctx))

	ctx = &CheckContext{Avatar: av, Creation: creation, Population: 50, PopCap: 50}
	assert.Equal(t, group.DistrictFullPizzeria, f.Run(ctx))

	ctx = &CheckContext{Avatar: av, Creation: creation, Draining: true, IgnoreSafety: true}
	assert.Equal(t, group.OK, f.Run(ctx))
}
