package group

import (
	"github.com/pkg/errors"

	"github.com/tooniverse/groupworld/engine/common"
)

const (
	// MinGroupID is the smallest allocatable group id
	MinGroupID common.GroupID = 1
	// MaxGroupID is the largest allocatable group id
	MaxGroupID common.GroupID = 60000
)

// ErrGroupIDExhausted is returned when every id of the pool is in use.
// This is a genuine invariant violation, not an expected rejection.
var ErrGroupIDExhausted = errors.New("group id pool exhausted")

// IDAllocator hands out group ids from a bounded pool. Ids grow
// monotonically and wrap around; freed ids become allocatable again.
type IDAllocator struct {
	next  common.GroupID
	inUse map[common.GroupID]struct{}
}

// NewIDAllocator creates an IDAllocator with the full pool free
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		next:  MinGroupID,
		inUse: map[common.GroupID]struct{}{},
	}
}

// Allocate returns a free group id, or ErrGroupIDExhausted
func (a *IDAllocator) Allocate() (common.GroupID, error) {
	poolSize := int(MaxGroupID - MinGroupID + 1)
	for i := 0; i < poolSize; i++ {
		id := a.next
		a.next++
		if a.next > MaxGroupID {
			a.next = MinGroupID
		}
		if _, used := a.inUse[id]; !used {
			a.inUse[id] = struct{}{}
			return id, nil
		}
	}
	return 0, ErrGroupIDExhausted
}

// Free returns the id to the pool
func (a *IDAllocator) Free(id common.GroupID) {
	delete(a.inUse, id)
}

// InUse returns the number of allocated ids
func (a *IDAllocator) InUse() int {
	return len(a.inUse)
}
