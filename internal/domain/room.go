package domain

type (
	// RoomName keys a room in the registry. Rooms are created on first join.
	RoomName string
	// ClientID is the participant id a client declares on join. Not unique.
	ClientID string
)
