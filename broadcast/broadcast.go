// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/wfunc/jinroserver/game"
	"github.com/wfunc/jinroserver/network"
	"github.com/wfunc/jinroserver/session"
)

// 广播接口
type Broadcaster interface {
	// BroadcastRoom pushes the committed room state to every session
	// subscribed to it. Each viewer receives their own filtered view, so
	// hidden role data never reaches the wrong client.
	BroadcastRoom(room *game.Room) error
}

// RoomBroadcaster delivers per-viewer room views over the session manager.
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastRoom(room *game.Room) error {
	sessions := b.sessionManager.GetByRoom(room.ID)

	for _, s := range sessions {
		view := game.ViewFor(room, s.UserID)
		data, err := json.Marshal(view)
		if err != nil {
			return err
		}
		if err := s.Send(network.MsgTypeRoomState, data); err != nil {
			// 发送失败的连接由读循环负责清理
			continue
		}
	}
	return nil
}
