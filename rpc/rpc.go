package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/wfunc/jinroserver/game"
	"github.com/wfunc/jinroserver/logger"
	"github.com/wfunc/jinroserver/persistence"
	"github.com/wfunc/jinroserver/services"
)

// Server manages the RPC listener for the ops surface.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Register exposes a service on the default net/rpc server.
func Register(rcvr interface{}) error {
	return rpc.Register(rcvr)
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes room summaries and player stats over net/rpc. It
// must follow the net/rpc signature: exported method, exported arguments,
// second argument is a pointer, return type is error.
type AdminService struct {
	store   persistence.RoomStore
	history *services.HistoryService
}

// NewAdminService creates a new AdminService.
func NewAdminService(store persistence.RoomStore, history *services.HistoryService) *AdminService {
	return &AdminService{store: store, history: history}
}

type RoomSummary struct {
	RoomID   string
	Phase    string
	DayCount int
	Players  int
	Alive    int
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []RoomSummary
}

// ListActiveRooms returns a summary of every unfinished room.
func (as *AdminService) ListActiveRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	rooms, err := as.store.ListActiveRooms(context.Background())
	if err != nil {
		return err
	}
	for _, room := range rooms {
		reply.Rooms = append(reply.Rooms, RoomSummary{
			RoomID:   room.ID,
			Phase:    string(room.Phase),
			DayCount: room.DayCount,
			Players:  len(room.Players),
			Alive:    room.AliveCount(),
		})
	}
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room game.RoomView
}

// GetRoom returns the spectator view of one room (roles hidden while the
// game runs, exactly like a non-player client would see).
func (as *AdminService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	room, err := as.store.GetRoom(context.Background(), args.RoomID)
	if err != nil {
		return err
	}
	reply.Room = game.ViewFor(room, "")
	return nil
}

type GetPlayerStatsArgs struct {
	PlayerID string
}

type GetPlayerStatsReply struct {
	Stats persistence.PlayerStats
}

// GetPlayerStats returns archived win/loss counts for a player.
func (as *AdminService) GetPlayerStats(args *GetPlayerStatsArgs, reply *GetPlayerStatsReply) error {
	stats, err := as.history.GetPlayerStats(context.Background(), args.PlayerID)
	if err != nil {
		return err
	}
	reply.Stats = *stats
	return nil
}
