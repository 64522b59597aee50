package group

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xiaonanln/typeconv"

	"github.com/tooniverse/groupworld/engine/common"
)

// Status is the membership status of one avatar inside a group
type Status int

const (
	// StatusJoined means the avatar is a full member
	StatusJoined Status = 0
	// StatusReserved means the avatar holds a provisional slot from an invite
	StatusReserved Status = 1
)

// Avatar is one entry of a group's member list
type Avatar struct {
	AvId     common.AvatarID
	Name     string
	Status   Status
	Reserved bool
}

// Group is the authoritative group record. Only the group store mutates
// groups; coordinators and clients hold read-only copies.
type Group struct {
	Id          common.GroupID
	Creation    Creation
	DistrictId  common.DistrictID
	Avatars     []Avatar
	Published   bool
	ZoneId      common.ZoneID
	KickedAvIds []common.AvatarID

	// runtime flags, not part of the stored creation spec
	AnnouncedBattle   bool
	AvatarEncountered bool
}

func (g *Group) String() string {
	return fmt.Sprintf("Group<%d|%s|%d/%d>", g.Id, g.Creation.Type, len(g.Avatars), g.Creation.Size)
}

// Def returns the group type definition of this group
func (g *Group) Def() *Def {
	return GetDef(g.Creation.Type)
}

// Owner returns the avatar id of the group owner, which is always the first
// member. Returns 0 for an empty group.
func (g *Group) Owner() common.AvatarID {
	if len(g.Avatars) == 0 {
		return 0
	}
	return g.Avatars[0].AvId
}

// MemberIndex returns the index of the avatar in the member list, -1 if absent
func (g *Group) MemberIndex(avId common.AvatarID) int {
	for i, av := range g.Avatars {
		if av.AvId == avId {
			return i
		}
	}
	return -1
}

// Member returns the member entry of the avatar, nil if absent
func (g *Group) Member(avId common.AvatarID) *Avatar {
	idx := g.MemberIndex(avId)
	if idx < 0 {
		return nil
	}
	return &g.Avatars[idx]
}

// IsFull checks if the group has no free slots; reserved members occupy slots
func (g *Group) IsFull() bool {
	return len(g.Avatars) >= g.Creation.Size
}

// HasKicked checks if the avatar was kicked from this group before
func (g *Group) HasKicked(avId common.AvatarID) bool {
	for _, id := range g.KickedAvIds {
		if id == avId {
			return true
		}
	}
	return false
}

// AddAvatar appends the avatar to the member list. Adding a second
// reservation for an avatar that is already reserved is rejected.
func (g *Group) AddAvatar(avId common.AvatarID, name string, mustReserve bool) Response {
	if member := g.Member(avId); member != nil {
		if member.Reserved && mustReserve {
			return AlreadyInGroup // no double reservation
		}
		if member.Reserved && !mustReserve {
			// resolve the reservation into a full membership
			member.Reserved = false
			member.Status = StatusJoined
			return OK
		}
		return AlreadyInGroup
	}

	if g.IsFull() {
		return GroupFilledUp
	}

	av := Avatar{AvId: avId, Name: name}
	if mustReserve {
		av.Status = StatusReserved
		av.Reserved = true
	}
	g.Avatars = append(g.Avatars, av)
	return OK
}

// RemoveAvatar deletes the avatar from the member list. With noRejoin the
// avatar is also barred from re-joining this group instance.
func (g *Group) RemoveAvatar(avId common.AvatarID, noRejoin bool) bool {
	idx := g.MemberIndex(avId)
	if idx < 0 {
		return false
	}
	g.Avatars = append(g.Avatars[:idx], g.Avatars[idx+1:]...)
	if noRejoin && !g.HasKicked(avId) {
		g.KickedAvIds = append(g.KickedAvIds, avId)
	}
	return true
}

// AnnounceBattle marks the shared encounter of the group as begun. The group
// becomes unpublishable and all unresolved reservations are evicted. Calling
// it again is a no-op; the evicted reservations of the first call are
// returned so the caller can notify them.
func (g *Group) AnnounceBattle() (evicted []common.AvatarID, first bool) {
	if g.AnnouncedBattle {
		return nil, false
	}
	g.AnnouncedBattle = true
	g.AvatarEncountered = true
	g.Published = false

	kept := g.Avatars[:0]
	for _, av := range g.Avatars {
		if av.Reserved {
			evicted = append(evicted, av.AvId)
		} else {
			kept = append(kept, av)
		}
	}
	g.Avatars = kept
	return evicted, true
}

// Copy returns a deep copy of the group
func (g *Group) Copy() *Group {
	c := *g
	c.Avatars = append([]Avatar(nil), g.Avatars...)
	c.KickedAvIds = append([]common.AvatarID(nil), g.KickedAvIds...)
	c.Creation.Options = append([]int(nil), g.Creation.Options...)
	return &c
}

// ToStruct converts the group to its positional wire layout:
// [groupId, [groupType, [options...], groupSize], districtId,
// [[avId, name, status, reserved]...], published, zoneId, [kickedAvIds...],
// announcedBattle, avatarEncountered]
func (g *Group) ToStruct() []interface{} {
	options := make([]interface{}, len(g.Creation.Options))
	for i, opt := range g.Creation.Options {
		options[i] = opt
	}

	avatars := make([]interface{}, len(g.Avatars))
	for i, av := range g.Avatars {
		avatars[i] = []interface{}{uint32(av.AvId), av.Name, int(av.Status), av.Reserved}
	}

	kicked := make([]interface{}, len(g.KickedAvIds))
	for i, avId := range g.KickedAvIds {
		kicked[i] = uint32(avId)
	}

	return []interface{}{
		uint32(g.Id),
		[]interface{}{int(g.Creation.Type), options, g.Creation.Size},
		uint32(g.DistrictId),
		avatars,
		g.Published,
		uint32(g.ZoneId),
		kicked,
		g.AnnouncedBattle,
		g.AvatarEncountered,
	}
}

// FromStruct rebuilds a group from its positional wire layout
func FromStruct(fields []interface{}) (*Group, error) {
	if len(fields) < 9 {
		return nil, errors.Errorf("group struct too short: %d fields", len(fields))
	}

	g := &Group{}
	g.Id = common.GroupID(typeconv.Int(fields[0]))

	creation, ok := fields[1].([]interface{})
	if !ok || len(creation) < 3 {
		return nil, errors.Errorf("bad group creation field: %v", fields[1])
	}
	g.Creation.Type = Type(typeconv.Int(creation[0]))
	options, ok := creation[1].([]interface{})
	if !ok {
		return nil, errors.Errorf("bad group options field: %v", creation[1])
	}
	g.Creation.Options = make([]int, len(options))
	for i, opt := range options {
		g.Creation.Options[i] = int(typeconv.Int(opt))
	}
	g.Creation.Size = int(typeconv.Int(creation[2]))

	g.DistrictId = common.DistrictID(typeconv.Int(fields[2]))

	avatars, ok := fields[3].([]interface{})
	if !ok {
		return nil, errors.Errorf("bad group avatar list: %v", fields[3])
	}
	g.Avatars = make([]Avatar, 0, len(avatars))
	for _, item := range avatars {
		entry, ok := item.([]interface{})
		if !ok || len(entry) < 4 {
			return nil, errors.Errorf("bad group avatar entry: %v", item)
		}
		g.Avatars = append(g.Avatars, Avatar{
			AvId:     common.AvatarID(typeconv.Int(entry[0])),
			Name:     typeconv.String(entry[1]),
			Status:   Status(typeconv.Int(entry[2])),
			Reserved: toBool(entry[3]),
		})
	}

	g.Published = toBool(fields[4])
	g.ZoneId = common.ZoneID(typeconv.Int(fields[5]))

	kicked, ok := fields[6].([]interface{})
	if !ok {
		return nil, errors.Errorf("bad group kicked list: %v", fields[6])
	}
	g.KickedAvIds = make([]common.AvatarID, 0, len(kicked))
	for _, item := range kicked {
		g.KickedAvIds = append(g.KickedAvIds, common.AvatarID(typeconv.Int(item)))
	}

	g.AnnouncedBattle = toBool(fields[7])
	g.AvatarEncountered = toBool(fields[8])
	return g, nil
}

func toBool(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return typeconv.Int(v) != 0
}
