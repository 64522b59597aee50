package coordinator

import (
	"fmt"

	"github.com/tooniverse/groupworld/engine/common"
)

// Avatar is the session record of one avatar connected to this district.
// It feeds the presence pushes that keep the group store's view fresh.
type Avatar struct {
	AvId        common.AvatarID
	Name        string
	ZoneId      common.ZoneID
	Hp          int
	MaxHp       int
	Level       int
	AccessLevel int
}

func (av *Avatar) String() string {
	return fmt.Sprintf("Avatar<%d|%s@%d>", av.AvId, av.Name, av.ZoneId)
}
