package group

// Response is the closed result enum shared by the group store, the
// coordinators and clients. Values cross the wire, so they must never be
// renumbered.
type Response int

const (
	// OK means the request was accepted
	OK Response = 0
	// AlreadyInGroup rejects an avatar that is already a member of some group
	AlreadyInGroup Response = 1
	// GroupNotPublic rejects joining an unpublished group
	GroupNotPublic Response = 2
	// KickedFromGroup rejects an avatar that was kicked from the group before
	KickedFromGroup Response = 3
	// GroupFilledUp rejects joining a group without free slots
	GroupFilledUp Response = 4
	// GroupNonexistent rejects requests referencing an unknown group
	GroupNonexistent Response = 5
	// GroupNotAvailable rejects a group whose shared encounter already began
	GroupNotAvailable Response = 6
	// DistrictDraining rejects group activity on a draining district
	DistrictDraining Response = 7
	// DistrictFullPizzeria rejects group activity on an overcrowded district
	DistrictFullPizzeria Response = 8
	// InviteExpired tells a responder that the invite no longer exists
	InviteExpired Response = 9
	// NotPermitted rejects an action the avatar has no permission for
	NotPermitted Response = 10
	// InvalidCreation rejects a creation spec that fails validation
	InvalidCreation Response = 11
	// InviteDeclined notifies an inviter that the invite was declined
	InviteDeclined Response = 12
	// InviteAccepted notifies an inviter that the invite was accepted
	InviteAccepted Response = 13
	// GroupJoined confirms a successful create or join to the avatar
	GroupJoined Response = 14

	// LeaveVoluntary is the leave reason for an avatar leaving on its own
	LeaveVoluntary Response = 20
	// LeaveKicked is the leave reason for a kicked avatar
	LeaveKicked Response = 21
	// LeaveDisbanded is the leave reason when the whole group is disbanded
	LeaveDisbanded Response = 22
	// LeaveOffline is the leave reason when the avatar stayed offline too long
	LeaveOffline Response = 23
	// LeaveZoneChanged is the leave reason when the owner left the group zone
	LeaveZoneChanged Response = 24
	// ManagerRestart is the leave reason pushed after a coordinator restart
	ManagerRestart Response = 25
)

var responseNames = map[Response]string{
	OK:                   "OK",
	AlreadyInGroup:       "AlreadyInGroup",
	GroupNotPublic:       "GroupNotPublic",
	KickedFromGroup:      "KickedFromGroup",
	GroupFilledUp:        "GroupFilledUp",
	GroupNonexistent:     "GroupNonexistent",
	GroupNotAvailable:    "GroupNotAvailable",
	DistrictDraining:     "DistrictDraining",
	DistrictFullPizzeria: "DistrictFullPizzeria",
	InviteExpired:        "InviteExpired",
	NotPermitted:         "NotPermitted",
	InvalidCreation:      "InvalidCreation",
	InviteDeclined:       "InviteDeclined",
	InviteAccepted:       "InviteAccepted",
	GroupJoined:          "GroupJoined",
	LeaveVoluntary:       "LeaveVoluntary",
	LeaveKicked:          "LeaveKicked",
	LeaveDisbanded:       "LeaveDisbanded",
	LeaveOffline:         "LeaveOffline",
	LeaveZoneChanged:     "LeaveZoneChanged",
	ManagerRestart:       "ManagerRestart",
}

func (r Response) String() string {
	if name, ok := responseNames[r]; ok {
		return name
	}
	return "Response?"
}
