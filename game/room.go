package game

import (
	"sort"
	"time"
)

// Phase 表示对局的当前阶段.
type Phase string

const (
	PhaseLobby           Phase = "LOBBY"
	PhaseDayConversation Phase = "DAY_CONVERSATION"
	PhaseDayVote         Phase = "DAY_VOTE"
	PhaseNightAction     Phase = "NIGHT_ACTION"
	PhaseGameOver        Phase = "GAME_OVER"
)

// Winner identifies the side that won a finished game.
type Winner string

const (
	WinnerNone       Winner = ""
	WinnerCompany    Winner = "COMPANY"
	WinnerSpies      Winner = "SPIES"
	WinnerConsultant Winner = "CONSULTANT"
)

// LogKind distinguishes system notices from resolution results.
type LogKind string

const (
	LogSystem LogKind = "SYSTEM"
	LogResult LogKind = "RESULT"
)

// LogEntry is one line of the room's append-only log. Entries are only ever
// appended, never mutated or reordered.
type LogEntry struct {
	ID        string    `json:"id"`
	Kind      LogKind   `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Player 玩家 - one participant, owned by its Room.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"` // empty until the game starts, then immutable
	IsAlive bool   `json:"is_alive"`
	IsHost  bool   `json:"is_host"`
}

// Room 房间 - one game instance. The room is the single shared mutable
// document; every command mutates it inside one store transaction.
type Room struct {
	ID            string             `json:"id"`
	HostID        string             `json:"host_id"`
	Players       map[string]*Player `json:"players"`
	Phase         Phase              `json:"phase"`
	DayCount      int                `json:"day_count"`
	PhaseDeadline time.Time          `json:"phase_deadline"`
	Logs          []LogEntry         `json:"logs"`

	// Votes maps voterId -> targetId during DAY_VOTE; cleared on phase exit.
	Votes map[string]string `json:"votes"`
	// Actions maps actorId -> targetId during NIGHT_ACTION; cleared on
	// phase exit. ActionOrder records submission order so the last writer
	// among same-role actors is authoritative.
	Actions     map[string]string `json:"actions"`
	ActionOrder []string          `json:"action_order,omitempty"`

	Winner    Winner    `json:"winner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Player returns the player with the given id, or nil.
func (r *Room) Player(id string) *Player {
	return r.Players[id]
}

// AliveCount returns the number of living players.
func (r *Room) AliveCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsAlive {
			n++
		}
	}
	return n
}

// AlivePlayers returns the living players in no particular order.
func (r *Room) AlivePlayers() []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

// OrderedPlayerIDs returns all player ids in a fixed enumeration order.
// Role assignment indexes into this ordering.
func (r *Room) OrderedPlayerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AppendLog appends one entry to the room log.
func (r *Room) AppendLog(id string, kind LogKind, message string, now time.Time) {
	r.Logs = append(r.Logs, LogEntry{
		ID:        id,
		Kind:      kind,
		Message:   message,
		Timestamp: now,
	})
}

// Clone returns a deep copy of the room. Stores hand mutation callbacks a
// clone so a rejected command cannot leak partial writes into the shared
// snapshot.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r

	c.Players = make(map[string]*Player, len(r.Players))
	for id, p := range r.Players {
		cp := *p
		c.Players[id] = &cp
	}

	c.Logs = append([]LogEntry(nil), r.Logs...)
	c.ActionOrder = append([]string(nil), r.ActionOrder...)

	c.Votes = make(map[string]string, len(r.Votes))
	for k, v := range r.Votes {
		c.Votes[k] = v
	}
	c.Actions = make(map[string]string, len(r.Actions))
	for k, v := range r.Actions {
		c.Actions[k] = v
	}
	return &c
}
