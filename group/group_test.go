package group

import (
	"testing"

	"github.com/bmizerany/assert"
	"github.com/vmihailenco/msgpack"

	"github.com/tooniverse/groupworld/engine/common"
)

func testGroup() *Group {
	return &Group{
		Id: 17,
		Creation: Creation{
			Type:    TypeBossRaid,
			Options: []int{1},
			Size:    4,
		},
		DistrictId: 401000000,
		Avatars: []Avatar{
			{AvId: 1001, Name: "flippy", Status: StatusJoined, Reserved: false},
			{AvId: 1002, Name: "barnacle", Status: StatusReserved, Reserved: true},
		},
		Published:   true,
		ZoneId:      10100,
		KickedAvIds: []common.AvatarID{1003},
	}
}

func TestStructRoundTrip(t *testing.T) {
	g := testGroup()
	got, err := FromStruct(g.ToStruct())
	assert.Equal(t, nil, err)
	assert.Equal(t, g, got)
}

func TestStructRoundTripThroughMsgpack(t *testing.T) {
	g := testGroup()
	data, err := msgpack.Marshal(g.ToStruct())
	assert.Equal(t, nil, err)

	var fields []interface{}
	err = msgpack.Unmarshal(data, &fields)
	assert.Equal(t, nil, err)

	got, err := FromStruct(fields)
	assert.Equal(t, nil, err)
	assert.Equal(t, g, got)
}

func TestOwnerIsFirstAvatar(t *testing.T) {
	g := testGroup()
	assert.Equal(t, common.AvatarID(1001), g.Owner())
	g.Avatars = nil
	assert.Equal(t, common.AvatarID(0), g.Owner())
}

func TestAddAvatar(t *testing.T) {
	g := testGroup()
	assert.Equal(t, OK, g.AddAvatar(1004, "clerk", false))
	assert.Equal(t, 3, len(g.Avatars))

	// no double reservation
	assert.Equal(t, AlreadyInGroup, g.AddAvatar(1002, "barnacle", true))

	// resolving a reservation keeps the member count
	assert.Equal(t, OK, g.AddAvatar(1002, "barnacle", false))
	assert.Equal(t, 3, len(g.Avatars))
	assert.Equal(t, false, g.Member(1002).Reserved)

	// capacity is enforced
	assert.Equal(t, OK, g.AddAvatar(1005, "doctor", false))
	assert.Equal(t, GroupFilledUp, g.AddAvatar(1006, "late", false))
	assert.Equal(t, 4, len(g.Avatars))
}

func TestRemoveAvatarNoRejoin(t *testing.T) {
	g := testGroup()
	assert.T(t, g.RemoveAvatar(1002, true), "remove should succeed")
	assert.T(t, g.HasKicked(1002), "avatar should be barred")
	assert.T(t, !g.RemoveAvatar(1002, true), "removing again should fail")
}

func TestAnnounceBattleIdempotent(t *testing.T) {
	g := testGroup()
	evicted, first := g.AnnounceBattle()
	assert.T(t, first, "first announce should report true")
	assert.Equal(t, []common.AvatarID{1002}, evicted)
	assert.Equal(t, false, g.Published)
	assert.Equal(t, 1, len(g.Avatars))

	evicted, first = g.AnnounceBattle()
	assert.T(t, !first, "second announce should be a no-op")
	assert.Equal(t, 0, len(evicted))
}

func TestCreationValidate(t *testing.T) {
	c := Creation{Type: TypeBossRaid, Options: []int{1}, Size: 4}
	assert.Equal(t, OK, c.Validate())

	c.Size = 5 // not a declared size
	assert.Equal(t, InvalidCreation, c.Validate())

	c = Creation{Type: TypeFacility, Options: []int{2, 1}, Size: 3}
	assert.Equal(t, OK, c.Validate())

	c.Options = []int{9, 1} // wing out of range
	assert.Equal(t, InvalidCreation, c.Validate())

	c.Options = []int{2} // wrong option count
	assert.Equal(t, InvalidCreation, c.Validate())

	c = Creation{Type: TypeInvalid, Size: 4}
	assert.Equal(t, InvalidCreation, c.Validate())
}

func TestIDAllocator(t *testing.T) {
	a := NewIDAllocator()
	id1, err := a.Allocate()
	assert.Equal(t, nil, err)
	assert.Equal(t, MinGroupID, id1)

	id2, err := a.Allocate()
	assert.Equal(t, nil, err)
	assert.T(t, id2 != id1, "ids should differ")

	a.Free(id1)
	assert.Equal(t, 1, a.InUse())

	// freed ids are reusable after the pool wraps
	for {
		id, err := a.Allocate()
		assert.Equal(t, nil, err)
		if id == id1 {
			break
		}
	}
}

func TestIDAllocatorExhaustion(t *testing.T) {
	a := NewIDAllocator()
	for i := MinGroupID; i <= MaxGroupID; i++ {
		_, err := a.Allocate()
		assert.Equal(t, nil, err)
	}
	_, err := a.Allocate()
	assert.Equal(t, ErrGroupIDExhausted, err)
}
