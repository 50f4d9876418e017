package game

import "time"

// PlayerView is the per-viewer projection of a player. Role is empty unless
// the viewer is allowed to see it.
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     Role   `json:"role,omitempty"`
	RoleName string `json:"role_name,omitempty"`
	IsAlive  bool   `json:"is_alive"`
	IsHost   bool   `json:"is_host"`
}

// RoomView is the room state as delivered to one connected client. The full
// role data never leaves the server except through this filter.
type RoomView struct {
	ID            string                `json:"id"`
	HostID        string                `json:"host_id"`
	Players       map[string]PlayerView `json:"players"`
	Phase         Phase                 `json:"phase"`
	DayCount      int                   `json:"day_count"`
	PhaseDeadline time.Time             `json:"phase_deadline"`
	Logs          []LogEntry            `json:"logs"`
	Votes         map[string]string     `json:"votes"`
	// YourAction echoes only the viewer's own pending night action; the
	// full action map would reveal who holds which role.
	YourAction string    `json:"your_action,omitempty"`
	Winner     Winner    `json:"winner,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ViewFor builds the filtered view of the room for the given viewer. A
// player always sees their own role; spies see fellow spies and engineers
// see fellow engineers; everything is revealed once the game is over.
func ViewFor(room *Room, viewerID string) RoomView {
	viewer := room.Player(viewerID)

	players := make(map[string]PlayerView, len(room.Players))
	for id, p := range room.Players {
		pv := PlayerView{
			ID:      p.ID,
			Name:    p.Name,
			IsAlive: p.IsAlive,
			IsHost:  p.IsHost,
		}
		if roleVisible(room, viewer, p) {
			pv.Role = p.Role
			pv.RoleName = p.Role.DisplayName()
		}
		players[id] = pv
	}

	votes := make(map[string]string, len(room.Votes))
	for voterID, targetID := range room.Votes {
		votes[voterID] = targetID
	}

	view := RoomView{
		ID:            room.ID,
		HostID:        room.HostID,
		Players:       players,
		Phase:         room.Phase,
		DayCount:      room.DayCount,
		PhaseDeadline: room.PhaseDeadline,
		Logs:          append([]LogEntry(nil), room.Logs...),
		Votes:         votes,
		Winner:        room.Winner,
		UpdatedAt:     room.UpdatedAt,
	}
	if target, ok := room.Actions[viewerID]; ok {
		view.YourAction = target
	}
	return view
}

func roleVisible(room *Room, viewer, p *Player) bool {
	if p.Role == "" {
		return false
	}
	if room.Phase == PhaseGameOver {
		return true
	}
	if viewer == nil {
		return false
	}
	if viewer.ID == p.ID {
		return true
	}
	// Spies know each other, and so do engineers.
	if viewer.Role == p.Role && (p.Role == RoleSpy || p.Role == RoleEngineer) {
		return true
	}
	return false
}
