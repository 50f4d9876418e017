package broadcast

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/wfunc/jinroserver/game"
	"github.com/wfunc/jinroserver/network"
	"github.com/wfunc/jinroserver/session"
)

// captureConnection records everything sent through it.
type captureConnection struct {
	msgIDs   []uint16
	payloads [][]byte
}

func (c *captureConnection) Send(msgID uint16, data []byte) error {
	c.msgIDs = append(c.msgIDs, msgID)
	c.payloads = append(c.payloads, data)
	return nil
}
func (c *captureConnection) Close() error                         { return nil }
func (c *captureConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (c *captureConnection) SetHeartbeat(interval time.Duration)  {}
func (c *captureConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestBroadcastRoom_FiltersPerViewer(t *testing.T) {
	manager := session.NewManager()

	spyConn := &captureConnection{}
	spySess := session.NewSession("s1", spyConn)
	spySess.UserID = "spy"
	spySess.SetRoom("AB12")
	manager.Add(spySess)

	droneConn := &captureConnection{}
	droneSess := session.NewSession("s2", droneConn)
	droneSess.UserID = "drone"
	droneSess.SetRoom("AB12")
	manager.Add(droneSess)

	otherConn := &captureConnection{}
	otherSess := session.NewSession("s3", otherConn)
	otherSess.UserID = "elsewhere"
	otherSess.SetRoom("CD34")
	manager.Add(otherSess)

	room := &game.Room{
		ID:     "AB12",
		HostID: "spy",
		Players: map[string]*game.Player{
			"spy":   {ID: "spy", Name: "Alice", Role: game.RoleSpy, IsAlive: true, IsHost: true},
			"drone": {ID: "drone", Name: "Bob", Role: game.RoleDrone, IsAlive: true},
		},
		Phase:    game.PhaseDayConversation,
		DayCount: 1,
		Votes:    map[string]string{},
		Actions:  map[string]string{},
	}

	b := NewRoomBroadcaster(manager)
	if err := b.BroadcastRoom(room); err != nil {
		t.Fatalf("BroadcastRoom failed: %v", err)
	}

	if len(spyConn.payloads) != 1 || len(droneConn.payloads) != 1 {
		t.Fatalf("expected 1 message per subscriber, got %d and %d", len(spyConn.payloads), len(droneConn.payloads))
	}
	if len(otherConn.payloads) != 0 {
		t.Fatalf("sessions in other rooms must not receive the broadcast, got %d", len(otherConn.payloads))
	}
	if spyConn.msgIDs[0] != network.MsgTypeRoomState {
		t.Errorf("expected msg id %d, got %d", network.MsgTypeRoomState, spyConn.msgIDs[0])
	}

	var spyView game.RoomView
	if err := json.Unmarshal(spyConn.payloads[0], &spyView); err != nil {
		t.Fatalf("spy payload is not a room view: %v", err)
	}
	if spyView.Players["spy"].Role != game.RoleSpy {
		t.Error("the spy must see their own role")
	}
	if spyView.Players["drone"].Role != "" {
		t.Error("the spy must not see the drone's role")
	}

	var droneView game.RoomView
	if err := json.Unmarshal(droneConn.payloads[0], &droneView); err != nil {
		t.Fatalf("drone payload is not a room view: %v", err)
	}
	if droneView.Players["spy"].Role != "" {
		t.Error("the drone must not see the spy's role")
	}
	if droneView.Players["drone"].Role != game.RoleDrone {
		t.Error("the drone must see their own role")
	}
}

func TestBroadcastRoom_NoSubscribers(t *testing.T) {
	b := NewRoomBroadcaster(session.NewManager())
	room := &game.Room{ID: "AB12", Players: map[string]*game.Player{}}
	if err := b.BroadcastRoom(room); err != nil {
		t.Fatalf("broadcasting to an empty room should succeed: %v", err)
	}
}
