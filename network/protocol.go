package network

const (
	MsgTypeHeartbeat uint16 = 1

	// Client commands
	MsgTypeCreateRoom   uint16 = 101
	MsgTypeJoinRoom     uint16 = 102
	MsgTypeStartGame    uint16 = 103
	MsgTypeSubmitAction uint16 = 104
	MsgTypeNextPhase    uint16 = 105

	// Server pushes
	MsgTypeRoomState uint16 = 301
	MsgTypeError     uint16 = 302
)
