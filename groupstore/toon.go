package groupstore

import (
	"fmt"

	"github.com/tooniverse/groupworld/engine/common"
)

// ToonInfo is the cached presence record of one avatar. It is refreshed by
// coordinator pushes on every login and zone change and deleted after the
// offline grace window expires.
type ToonInfo struct {
	AvId        common.AvatarID
	Name        string
	ZoneId      common.ZoneID
	DistrictId  common.DistrictID
	Hp          int
	MaxHp       int
	Level       int
	AccessLevel int
}

func (t *ToonInfo) String() string {
	return fmt.Sprintf("Toon<%d|%s@%d/%d>", t.AvId, t.Name, t.DistrictId, t.ZoneId)
}
