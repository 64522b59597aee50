package common

// AvatarID is the id type of avatars (toons)
type AvatarID uint32

// IsNil returns if AvatarID is nil
func (id AvatarID) IsNil() bool {
	return id == 0
}

// GroupID is the id type of groups, allocated by the group store
type GroupID uint32

// IsNil returns if GroupID is nil
func (id GroupID) IsNil() bool {
	return id == 0
}

// Access levels of avatars, mirrored from the game server
const (
	AccessLevelPlayer    = 100
	AccessLevelModerator = 400
)

// DistrictID is the id type of districts (shards)
type DistrictID uint32

// ZoneID is the id type of in-game zones
type ZoneID uint32

// Hood returns the hood (neighborhood) that the zone belongs to
func (z ZoneID) Hood() ZoneID {
	return z - z%1000
}
