package group

import (
	"github.com/tooniverse/groupworld/engine/common"
)

// Type is the category of a group, immutable after creation
type Type int

const (
	// TypeInvalid is the zero Type
	TypeInvalid Type = 0
	// TypeBossRaid is a shared raid boss encounter group
	TypeBossRaid Type = 1
	// TypeFacility is a facility run (cog building style) group
	TypeFacility Type = 2
	// TypeStreetTask is a street task group bound to one street zone
	TypeStreetTask Type = 3
	// TypeActivity is a social activity group (minigames, fishing, ...)
	TypeActivity Type = 4
)

var typeNames = map[Type]string{
	TypeBossRaid:   "BossRaid",
	TypeFacility:   "Facility",
	TypeStreetTask: "StreetTask",
	TypeActivity:   "Activity",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Type?"
}

// Def declares the rules of one group type. Defs are static data; they are
// never mutated after process start.
type Def struct {
	Type  Type
	Name  string
	Sizes []int
	// Options declares, per option slot, the values that slot may take.
	Options [][]int
	// ForceZoneConstant disbands the group when the owner leaves the creation zone
	ForceZoneConstant bool
	// AllowFullHood permits the owner to roam the whole hood of the group zone
	AllowFullHood bool
	// Zones is the set of permitted zones; empty means any zone
	Zones []common.ZoneID
}

// HasSize checks if size is a declared capacity of this group type
func (def *Def) HasSize(size int) bool {
	for _, s := range def.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// HasZone checks if zone is permitted for this group type
func (def *Def) HasZone(zone common.ZoneID) bool {
	if len(def.Zones) == 0 {
		return true
	}
	for _, z := range def.Zones {
		if z == zone {
			return true
		}
	}
	return false
}

var defs = map[Type]*Def{
	TypeBossRaid: {
		Type:  TypeBossRaid,
		Name:  "BossRaid",
		Sizes: []int{4, 8},
		Options: [][]int{
			{0, 1, 2}, // boss tier
		},
		ForceZoneConstant: true,
		Zones:             []common.ZoneID{10100, 11100, 12100, 13100},
	},
	TypeFacility: {
		Type:  TypeFacility,
		Name:  "Facility",
		Sizes: []int{2, 3, 4},
		Options: [][]int{
			{0, 1, 2, 3}, // facility wing
			{0, 1},       // short / full run
		},
		ForceZoneConstant: false,
		AllowFullHood:     true,
		Zones:             []common.ZoneID{11200, 12200, 13200},
	},
	TypeStreetTask: {
		Type:              TypeStreetTask,
		Name:              "StreetTask",
		Sizes:             []int{2, 3, 4},
		Options:           [][]int{},
		ForceZoneConstant: false,
		AllowFullHood:     true,
	},
	TypeActivity: {
		Type:  TypeActivity,
		Name:  "Activity",
		Sizes: []int{2, 3, 4, 5, 6, 7, 8},
		Options: [][]int{
			{0, 1, 2, 3, 4}, // activity kind
		},
		ForceZoneConstant: false,
		AllowFullHood:     true,
	},
}

// GetDef returns the Def of the group type, nil for unknown types
func GetDef(t Type) *Def {
	return defs[t]
}

// Creation is the client supplied spec of a new group
type Creation struct {
	Type    Type
	Options []int
	Size    int
}

// Validate checks the creation spec against the declared rules of its type
func (c *Creation) Validate() Response {
	def := GetDef(c.Type)
	if def == nil {
		return InvalidCreation
	}
	if !def.HasSize(c.Size) {
		return InvalidCreation
	}
	if len(c.Options) != len(def.Options) {
		return InvalidCreation
	}
	for i, opt := range c.Options {
		valid := false
		for _, v := range def.Options[i] {
			if v == opt {
				valid = true
				break
			}
		}
		if !valid {
			return InvalidCreation
		}
	}
	return OK
}
