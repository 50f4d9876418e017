// sweeper/sweeper.go
package sweeper

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/jinroserver/broadcast"
	"github.com/wfunc/jinroserver/game"
	"github.com/wfunc/jinroserver/logger"
	"github.com/wfunc/jinroserver/persistence"
)

// deadline is one scheduled phase expiry.
type deadline struct {
	RoomID string
	At     time.Time
	index  int
}

type deadlineQueue []*deadline

func (q deadlineQueue) Len() int { return len(q) }

func (q deadlineQueue) Less(i, j int) bool {
	return q[i].At.Before(q[j].At)
}

func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *deadlineQueue) Push(x interface{}) {
	n := len(*q)
	entry := x.(*deadline)
	entry.index = n
	*q = append(*q, entry)
}

func (q *deadlineQueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	entry.index = -1
	*q = old[0 : n-1]
	return entry
}

// Sweeper enforces phase deadlines. Rooms cannot advance themselves when no
// player acts, so the sweeper fires the DAY_CONVERSATION -> DAY_VOTE
// transition once a room's deadline passes, committing it through the same
// optimistic transaction as any player command. A coarse reconciliation scan
// over the store catches deadlines scheduled before a restart.
type Sweeper struct {
	store       persistence.RoomStore
	engine      *game.Engine
	broadcaster broadcast.Broadcaster

	queue    deadlineQueue
	selected map[string]*deadline
	mutex    sync.Mutex

	interval  time.Duration
	closeChan chan struct{}
	closeOnce sync.Once
}

// New creates a sweeper polling at the given interval.
func New(store persistence.RoomStore, engine *game.Engine, broadcaster broadcast.Broadcaster, interval time.Duration) *Sweeper {
	s := &Sweeper{
		store:       store,
		engine:      engine,
		broadcaster: broadcaster,
		queue:       make(deadlineQueue, 0),
		selected:    make(map[string]*deadline),
		interval:    interval,
		closeChan:   make(chan struct{}),
	}
	heap.Init(&s.queue)
	return s
}

// Schedule registers (or moves) the expiry for a room. A zero time removes
// the room from the queue.
func (s *Sweeper) Schedule(roomID string, at time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if entry, ok := s.selected[roomID]; ok {
		if at.IsZero() {
			heap.Remove(&s.queue, entry.index)
			delete(s.selected, roomID)
			return
		}
		entry.At = at
		heap.Fix(&s.queue, entry.index)
		return
	}
	if at.IsZero() {
		return
	}

	entry := &deadline{RoomID: roomID, At: at}
	heap.Push(&s.queue, entry)
	s.selected[roomID] = entry
}

// Start launches the sweep loop. Reconcile every few ticks picks up rooms
// whose deadlines predate this process.
func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	reconcileEvery := 12
	tick := 0

	// Pick up rooms persisted before this process started.
	s.Reconcile(context.Background())

	for {
		select {
		case <-ticker.C:
			s.sweep()
			tick++
			if tick%reconcileEvery == 0 {
				s.Reconcile(context.Background())
			}
		case <-s.closeChan:
			return
		}
	}
}

// sweep fires every queued deadline that has passed.
func (s *Sweeper) sweep() {
	now := time.Now()

	for {
		s.mutex.Lock()
		if s.queue.Len() == 0 || s.queue[0].At.After(now) {
			s.mutex.Unlock()
			return
		}
		entry := heap.Pop(&s.queue).(*deadline)
		delete(s.selected, entry.RoomID)
		s.mutex.Unlock()

		s.Expire(context.Background(), entry.RoomID)
	}
}

// Expire forces the conversation-to-vote transition for one room if its
// deadline has passed. Losing the race to a host advance or a concurrent
// sweep is fine: the engine reports no change and nothing is written.
func (s *Sweeper) Expire(ctx context.Context, roomID string) {
	room, err := s.store.UpdateRoom(ctx, roomID, s.engine.ExpireConversation)
	if errors.Is(err, game.ErrNoChange) {
		// Still mid-conversation with a future deadline means the clock
		// was reset; keep watching the room.
		if room != nil && room.Phase == game.PhaseDayConversation {
			s.Schedule(roomID, room.PhaseDeadline)
		}
		return
	}
	if err != nil {
		if !errors.Is(err, persistence.ErrRoomNotFound) {
			logger.Log.Errorf("Deadline sweep for room %s failed: %v", roomID, err)
		}
		return
	}

	logger.Log.Infof("Room %s conversation deadline passed, advancing to vote", roomID)
	if err := s.broadcaster.BroadcastRoom(room); err != nil {
		logger.Log.Errorf("Broadcast after sweep for room %s failed: %v", roomID, err)
	}
}

// Reconcile scans the store for conversations the queue does not know about
// and schedules their deadlines.
func (s *Sweeper) Reconcile(ctx context.Context) {
	rooms, err := s.store.ListActiveRooms(ctx)
	if err != nil {
		logger.Log.Errorf("Deadline reconcile scan failed: %v", err)
		return
	}

	for _, room := range rooms {
		if room.Phase != game.PhaseDayConversation {
			continue
		}
		s.mutex.Lock()
		_, known := s.selected[room.ID]
		s.mutex.Unlock()
		if !known {
			s.Schedule(room.ID, room.PhaseDeadline)
		}
	}
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	s.closeOnce.Do(func() {
		close(s.closeChan)
	})
}
