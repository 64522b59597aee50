package coordinator

import (
	"github.com/tooniverse/groupworld/engine/gwlog"
	"github.com/tooniverse/groupworld/group"
)

// CheckContext carries everything one eligibility check can look at. Not
// every rule uses every field; rules skip themselves when their fields are
// absent, which lets one rule chain serve group creation, direct joins and
// invite validation alike.
type CheckContext struct {
	Avatar   *Avatar
	Creation group.Creation // creation spec, zero for joins
	Target   *group.Group   // the group being joined, nil when creating
	OwnGroup *group.Group   // the avatar's current group, nil if none
	Join     bool           // a join attempt requires an existing target
	// Force bypasses the published check, used for invite driven joins
	Force bool
	// IgnoreSafety bypasses the district draining and population checks
	IgnoreSafety bool

	Draining   bool
	Population int
	PopCap     int
}

// Rule is one eligibility rule of the filter chain
type Rule interface {
	Name() string
	Check(ctx *CheckContext) group.Response
}

// Filterer runs a fixed chain of eligibility rules against a check context.
// The first rule that rejects decides the response; rejections are expected
// user-facing outcomes and are never logged as errors.
type Filterer struct {
	rules []Rule
}

// NewFilterer creates a filterer with the standard rule chain
func NewFilterer() *Filterer {
	return &Filterer{
		rules: []Rule{
			ruleDistrict{},
			ruleCreation{},
			ruleAlreadyInGroup{},
			ruleExists{},
			ruleAvailable{},
			rulePublished{},
			ruleKicked{},
			ruleCapacity{},
		},
	}
}

// Run executes the rule chain, returning OK or the first rejection reason
func (f *Filterer) Run(ctx *CheckContext) group.Response {
	for _, rule := range f.rules {
		if resp := rule.Check(ctx); resp != group.OK {
			gwlog.Debugf("filterer: avatar %d rejected by %s: %s", ctx.Avatar.AvId, rule.Name(), resp)
			return resp
		}
	}
	return group.OK
}

type ruleDistrict struct{}

func (ruleDistrict) Name() string { return "district" }

func (ruleDistrict) Check(ctx *CheckContext) group.Response {
	if ctx.IgnoreSafety {
		return group.OK
	}
	if ctx.Draining {
		return group.DistrictDraining
	}
	if ctx.PopCap > 0 && ctx.Population >= ctx.PopCap {
		return group.DistrictFullPizzeria
	}
	return group.OK
}

type ruleCreation struct{}

func (ruleCreation) Name() string { return "creation" }

func (ruleCreation) Check(ctx *CheckContext) group.Response {
	if ctx.Target != nil || ctx.Join {
		return group.OK
	}
	return ctx.Creation.Validate()
}

type ruleAlreadyInGroup struct{}

func (ruleAlreadyInGroup) Name() string { return "alreadyInGroup" }

func (ruleAlreadyInGroup) Check(ctx *CheckContext) group.Response {
	if ctx.OwnGroup == nil {
		return group.OK
	}
	if m := ctx.OwnGroup.Member(ctx.Avatar.AvId); m != nil && m.Reserved {
		// a reservation is not a real membership yet
		return group.OK
	}
	return group.AlreadyInGroup
}

type ruleExists struct{}

func (ruleExists) Name() string { return "exists" }

func (ruleExists) Check(ctx *CheckContext) group.Response {
	if ctx.Join && ctx.Target == nil {
		return group.GroupNonexistent
	}
	return group.OK
}

type ruleAvailable struct{}

func (ruleAvailable) Name() string { return "available" }

func (ruleAvailable) Check(ctx *CheckContext) group.Response {
	if ctx.Target != nil && ctx.Target.AnnouncedBattle {
		return group.GroupNotAvailable
	}
	return group.OK
}

type rulePublished struct{}

func (rulePublished) Name() string { return "published" }

func (rulePublished) Check(ctx *CheckContext) group.Response {
	if ctx.Target == nil || ctx.Force {
		return group.OK
	}
	if !ctx.Target.Published {
		return group.GroupNotPublic
	}
	return group.OK
}

type ruleKicked struct{}

func (ruleKicked) Name() string { return "kicked" }

func (ruleKicked) Check(ctx *CheckContext) group.Response {
	if ctx.Target != nil && ctx.Target.HasKicked(ctx.Avatar.AvId) {
		return group.KickedFromGroup
	}
	return group.OK
}

type ruleCapacity struct{}

func (ruleCapacity) Name() string { return "capacity" }

func (ruleCapacity) Check(ctx *CheckContext) group.Response {
	if ctx.Target == nil {
		return group.OK
	}
	if m := ctx.Target.Member(ctx.Avatar.AvId); m != nil && m.Reserved {
		// the reserved slot already counts this avatar
		return group.OK
	}
	if ctx.Target.IsFull() {
		return group.GroupFilledUp
	}
	return group.OK
}
