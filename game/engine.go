package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	// MinPlayers is the smallest lobby that can start a game.
	MinPlayers = 4
	// MaxPlayers is the room capacity.
	MaxPlayers = 8
	// ConversationDuration is how long a day conversation lasts before the
	// phase is eligible for forced advance.
	ConversationDuration = 180 * time.Second

	roomIDChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomIDLength = 4
)

// ActionType names the action a player submits.
type ActionType string

const (
	ActionVote   ActionType = "VOTE"
	ActionAttack ActionType = "ATTACK"
	ActionDivine ActionType = "DIVINE"
	ActionGuard  ActionType = "GUARD"
)

// Engine validates commands against a room snapshot and applies them. All
// methods mutate only the snapshot they are given; the store commits the
// result atomically. The function fields exist so tests can pin the clock,
// the shuffle and log ids; NewEngine wires the production defaults.
type Engine struct {
	Now     func() time.Time
	Shuffle func(n int, swap func(i, j int))
	NewID   func() string

	MinPlayers       int
	MaxPlayers       int
	ConversationTime time.Duration
}

// NewEngine creates an engine with production defaults.
func NewEngine() *Engine {
	return &Engine{
		Now:              time.Now,
		Shuffle:          rand.Shuffle,
		NewID:            func() string { return uuid.New().String() },
		MinPlayers:       MinPlayers,
		MaxPlayers:       MaxPlayers,
		ConversationTime: ConversationDuration,
	}
}

// GenerateRoomID returns a random 4-character room code. Codes are not
// guaranteed unique; callers must retry on an id-exists conflict from the
// store.
func GenerateRoomID() string {
	b := make([]byte, roomIDLength)
	for i := range b {
		b[i] = roomIDChars[rand.Intn(len(roomIDChars))]
	}
	return string(b)
}

// CreateRoom builds a new lobby room with the caller as host.
func (e *Engine) CreateRoom(roomID, callerID, userName string) (*Room, error) {
	if callerID == "" {
		return nil, errUnauthenticated()
	}
	if userName == "" {
		return nil, errInvalidArgument("user name is required")
	}

	now := e.Now()
	room := &Room{
		ID:     roomID,
		HostID: callerID,
		Players: map[string]*Player{
			callerID: {
				ID:      callerID,
				Name:    userName,
				IsAlive: true,
				IsHost:  true,
			},
		},
		Phase:     PhaseLobby,
		DayCount:  0,
		Votes:     map[string]string{},
		Actions:   map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	room.AppendLog(e.NewID(), LogSystem, "Room created by "+userName, now)
	return room, nil
}

// Join adds the caller to a lobby room. Joining a room the caller is
// already in is idempotent and returns ErrNoChange.
func (e *Engine) Join(room *Room, callerID, userName string) error {
	if callerID == "" {
		return errUnauthenticated()
	}
	if userName == "" {
		return errInvalidArgument("user name is required")
	}
	if room.Phase != PhaseLobby {
		return errFailedPrecondition("game has already started")
	}
	if _, ok := room.Players[callerID]; ok {
		return ErrNoChange
	}
	if len(room.Players) >= e.MaxPlayers {
		return errResourceExhausted("room is full")
	}

	now := e.Now()
	room.Players[callerID] = &Player{
		ID:      callerID,
		Name:    userName,
		IsAlive: true,
	}
	room.AppendLog(e.NewID(), LogSystem, userName+" joined the room.", now)
	room.UpdatedAt = now
	return nil
}

// Start deals roles and moves the room into day 1. Host only.
func (e *Engine) Start(room *Room, callerID string) error {
	if callerID == "" {
		return errUnauthenticated()
	}
	if room.HostID != callerID {
		return errPermissionDenied("only the host can start the game")
	}
	if room.Phase != PhaseLobby {
		return errFailedPrecondition("game has already started")
	}
	if len(room.Players) < e.MinPlayers {
		return errFailedPrecondition("need at least 4 players")
	}

	ids := room.OrderedPlayerIDs()
	roles := RolesForCount(len(ids))
	e.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})
	for i, id := range ids {
		room.Players[id].Role = roles[i]
	}

	now := e.Now()
	room.Phase = PhaseDayConversation
	room.DayCount = 1
	room.PhaseDeadline = now.Add(e.ConversationTime)
	room.AppendLog(e.NewID(), LogSystem, "Game started! Day 1 conversation begin.", now)
	room.UpdatedAt = now
	return nil
}

// AdvancePhase forces the conversation into the vote. Host only; the
// deadline sweeper uses ExpireConversation instead.
func (e *Engine) AdvancePhase(room *Room, callerID string) error {
	if callerID == "" {
		return errUnauthenticated()
	}
	if room.HostID != callerID {
		return errPermissionDenied("only the host can change the phase")
	}
	if room.Phase != PhaseDayConversation {
		return errFailedPrecondition("can only skip the conversation")
	}
	e.beginVote(room)
	return nil
}

// ExpireConversation advances DAY_CONVERSATION to DAY_VOTE once the phase
// deadline has passed. It returns ErrNoChange when there is nothing to do,
// which makes the sweep safe to run against any room at any time.
func (e *Engine) ExpireConversation(room *Room) error {
	if room.Phase != PhaseDayConversation {
		return ErrNoChange
	}
	if e.Now().Before(room.PhaseDeadline) {
		return ErrNoChange
	}
	e.beginVote(room)
	return nil
}

func (e *Engine) beginVote(room *Room) {
	now := e.Now()
	room.Phase = PhaseDayVote
	room.AppendLog(e.NewID(), LogSystem, "Discussion ended. Time to vote (HR Meeting).", now)
	room.UpdatedAt = now
}

// SubmitAction records a vote or a night action for the caller and resolves
// the phase when the last required participant has acted. Exactly one commit
// observes a completed quorum, so resolution happens exactly once even under
// racing submissions.
func (e *Engine) SubmitAction(room *Room, callerID string, action ActionType, targetID string) error {
	if callerID == "" {
		return errUnauthenticated()
	}
	player := room.Player(callerID)
	if player == nil || !player.IsAlive {
		return errPermissionDenied("you are not an active player")
	}

	switch room.Phase {
	case PhaseDayVote:
		if action != ActionVote {
			return errInvalidArgument("only votes are accepted during the day vote")
		}
		return e.submitVote(room, callerID, targetID)
	case PhaseNightAction:
		if action == ActionVote {
			return errFailedPrecondition("voting is closed for the night")
		}
		return e.submitNightAction(room, player, action, targetID)
	default:
		return errFailedPrecondition("no actions are accepted in the current phase")
	}
}

// submitVote records or overwrites the caller's vote and resolves the
// execution once every living player has voted.
func (e *Engine) submitVote(room *Room, callerID, targetID string) error {
	if target := room.Player(targetID); target == nil || !target.IsAlive {
		return errInvalidArgument("target is not a living player")
	}

	now := e.Now()
	room.Votes[callerID] = targetID
	room.UpdatedAt = now

	if len(room.Votes) < room.AliveCount() {
		return nil
	}

	executedID, tied := TallyVotes(room.Votes)
	if !tied && executedID != "" {
		executed := room.Player(executedID)
		executed.IsAlive = false
		room.AppendLog(e.NewID(), LogResult, executed.Name+" was fired (executed).", now)
	} else {
		room.AppendLog(e.NewID(), LogResult, "Vote tied. No one was fired.", now)
	}

	// Win conditions are evaluated only after night resolution; a day
	// execution always flows into a night first.
	room.Votes = map[string]string{}
	room.Phase = PhaseNightAction
	room.UpdatedAt = now

	// An execution can leave the night with no living ability holder at
	// all. Nothing would ever submit, so the empty night resolves on the
	// spot instead of stranding the room.
	if nightQuorumMet(room) {
		e.resolveNight(room, now)
	}
	return nil
}

// submitNightAction records the caller's night action and resolves the night
// once every role type with a living holder has acted.
func (e *Engine) submitNightAction(room *Room, player *Player, action ActionType, targetID string) error {
	ability := player.Role.Ability()
	if ability == AbilityNone {
		return errFailedPrecondition("your role has no night action")
	}
	if string(action) != string(ability) {
		return errInvalidArgument("action does not match your role")
	}
	if target := room.Player(targetID); target == nil || !target.IsAlive {
		return errInvalidArgument("target is not a living player")
	}

	now := e.Now()
	room.Actions[player.ID] = targetID
	recordActionOrder(room, player.ID)
	room.UpdatedAt = now

	if !nightQuorumMet(room) {
		return nil
	}

	e.resolveNight(room, now)
	return nil
}

// resolveNight applies the recorded night actions, opens the next day and
// runs the win check.
func (e *Engine) resolveNight(room *Room, now time.Time) {
	result := ResolveNight(room)
	for _, death := range result.Deaths {
		room.Player(death).IsAlive = false
	}
	for _, msg := range result.Logs {
		room.AppendLog(e.NewID(), LogResult, msg, now)
	}

	room.Actions = map[string]string{}
	room.ActionOrder = nil
	room.Phase = PhaseDayConversation
	room.DayCount++
	room.PhaseDeadline = now.Add(e.ConversationTime)

	if winner := EvaluateWinner(room.Players); winner != WinnerNone {
		room.Phase = PhaseGameOver
		room.Winner = winner
		room.AppendLog(e.NewID(), LogSystem, "Game over. Winner: "+string(winner), now)
	}
	room.UpdatedAt = now
}

// recordActionOrder moves the actor to the end of the submission order so
// the last writer among holders of the same role stays authoritative.
func recordActionOrder(room *Room, actorID string) {
	order := room.ActionOrder[:0]
	for _, id := range room.ActionOrder {
		if id != actorID {
			order = append(order, id)
		}
	}
	room.ActionOrder = append(order, actorID)
}

// nightQuorumMet reports whether every ability with at least one living
// holder has at least one recorded action from a living holder. Abilities
// with no living holder are vacuously satisfied.
func nightQuorumMet(room *Room) bool {
	for _, ability := range []Ability{AbilityAttack, AbilityDivine, AbilityGuard} {
		required := false
		for _, p := range room.Players {
			if p.IsAlive && p.Role.Ability() == ability {
				required = true
				break
			}
		}
		if !required {
			continue
		}
		acted := false
		for actorID := range room.Actions {
			actor := room.Player(actorID)
			if actor != nil && actor.IsAlive && actor.Role.Ability() == ability {
				acted = true
				break
			}
		}
		if !acted {
			return false
		}
	}
	return true
}
