package common

// AvatarIDSet is the data structure for a set of avatar IDs
type AvatarIDSet map[AvatarID]struct{}

// Add adds an avatar ID to AvatarIDSet
func (s AvatarIDSet) Add(id AvatarID) {
	s[id] = struct{}{}
}

// Del removes an avatar ID from AvatarIDSet
func (s AvatarIDSet) Del(id AvatarID) {
	delete(s, id)
}

// Contains checks if avatar ID is in AvatarIDSet
func (s AvatarIDSet) Contains(id AvatarID) bool {
	_, ok := s[id]
	return ok
}

// ToList converts AvatarIDSet to a slice of avatar IDs
func (s AvatarIDSet) ToList() []AvatarID {
	list := make([]AvatarID, 0, len(s))
	for id := range s {
		list = append(list, id)
	}
	return list
}

// ForEach visits every avatar ID in the set until cb returns false
func (s AvatarIDSet) ForEach(cb func(id AvatarID) bool) {
	for id := range s {
		if !cb(id) {
			break
		}
	}
}
