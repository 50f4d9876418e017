package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"google.golang.org/grpc/codes"

	"github.com/wfunc/jinroserver/broadcast"
	"github.com/wfunc/jinroserver/config"
	"github.com/wfunc/jinroserver/game"
	"github.com/wfunc/jinroserver/logger"
	"github.com/wfunc/jinroserver/monitor"
	"github.com/wfunc/jinroserver/network"
	"github.com/wfunc/jinroserver/persistence"
	gameserver_rpc "github.com/wfunc/jinroserver/rpc"
	"github.com/wfunc/jinroserver/services"
	"github.com/wfunc/jinroserver/session"
	"github.com/wfunc/jinroserver/sweeper"
)

// createRoomIDAttempts bounds retries when a generated room code collides.
const createRoomIDAttempts = 10

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	store          persistence.Database
	engine         *game.Engine
	broadcaster    broadcast.Broadcaster
	sweeper        *sweeper.Sweeper
	history        *services.HistoryService
	rpcServer      *gameserver_rpc.Server
	monitor        *monitor.Monitor
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	engine := game.NewEngine()
	if cfg.Game.MinPlayers > 0 {
		engine.MinPlayers = cfg.Game.MinPlayers
	}
	if cfg.Game.MaxPlayers > 0 {
		engine.MaxPlayers = cfg.Game.MaxPlayers
	}
	if cfg.Game.ConversationTime > 0 {
		engine.ConversationTime = cfg.Game.ConversationTime
	}

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		sessionManager: session.NewManager(),
		store:          db,
		engine:         engine,
		history:        services.NewHistoryService(db),
		monitor:        monitor.NewMonitor("jinroserver"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager)
	s.sweeper = sweeper.New(db, engine, s.broadcaster, cfg.Game.SweepInterval)

	rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := gameserver_rpc.NewAdminService(db, s.history)
	if err := gameserver_rpc.Register(adminService); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}

	if reporter, ok := db.(persistence.ConflictReporter); ok {
		reporter.SetOnConflictRetry(s.monitor.IncCommitRetries)
	}

	s.monitor.StartServer(cfg.Server.MetricsAddress)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.sweeper.Start()
	go s.trackActiveRooms()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

// trackActiveRooms keeps the active-rooms gauge roughly current.
func (s *GameServer) trackActiveRooms() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rooms, err := s.store.ListActiveRooms(context.Background())
			if err != nil {
				continue
			}
			s.monitor.SetActiveRooms(len(rooms))
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.sweeper.Stop()
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	// The caller identity is authenticated upstream; the server trusts
	// the opaque id handed over on the handshake.
	s.handleConnection(conn, r.URL.Query().Get("uid"))
}

func (s *GameServer) handleConnection(conn *websocket.Conn, userID string) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	sess.UserID = userID
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	defer func() {
		s.monitor.ObserveCommandLatency(time.Since(start))
	}()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()
	case network.MsgTypeCreateRoom:
		s.monitor.IncCommand("create_room")
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.monitor.IncCommand("join_room")
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeStartGame:
		s.monitor.IncCommand("start_game")
		s.handleStartGame(sess, packet)
	case network.MsgTypeSubmitAction:
		s.monitor.IncCommand("submit_action")
		s.handleSubmitAction(sess, packet)
	case network.MsgTypeNextPhase:
		s.monitor.IncCommand("next_phase")
		s.handleNextPhase(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

type createRoomRequest struct {
	UserName string `json:"user_name"`
}

type joinRoomRequest struct {
	RoomID   string `json:"room_id"`
	UserName string `json:"user_name"`
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

type submitActionRequest struct {
	RoomID     string `json:"room_id"`
	ActionType string `json:"action_type"`
	TargetID   string `json:"target_id"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req createRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, codes.InvalidArgument, "malformed payload")
		return
	}

	ctx := context.Background()

	// Room codes are short and random; retry with a fresh code when the
	// store reports a collision.
	for attempt := 0; attempt < createRoomIDAttempts; attempt++ {
		room, err := s.engine.CreateRoom(game.GenerateRoomID(), sess.UserID, req.UserName)
		if err != nil {
			s.rejectCommand(sess, err)
			return
		}

		err = s.store.CreateRoom(ctx, room)
		if errors.Is(err, persistence.ErrRoomExists) {
			continue
		}
		if err != nil {
			logger.Log.Errorf("Create room failed: %v", err)
			s.sendError(sess, codes.Internal, "could not create room")
			return
		}

		sess.SetRoom(room.ID)
		logger.Log.Infof("Session %s created room %s", sess.GetID(), room.ID)
		s.reply(sess, network.MsgTypeCreateRoom, map[string]interface{}{"room_id": room.ID})
		s.broadcaster.BroadcastRoom(room)
		return
	}
	s.sendError(sess, codes.Internal, "could not allocate a room code")
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req joinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, codes.InvalidArgument, "malformed payload")
		return
	}
	if req.RoomID == "" {
		s.sendError(sess, codes.InvalidArgument, "room id is required")
		return
	}

	room, err := s.store.UpdateRoom(context.Background(), req.RoomID, func(r *game.Room) error {
		return s.engine.Join(r, sess.UserID, req.UserName)
	})
	rejoined := errors.Is(err, game.ErrNoChange)
	if err != nil && !rejoined {
		s.rejectCommand(sess, err)
		return
	}

	sess.SetRoom(room.ID)
	s.reply(sess, network.MsgTypeJoinRoom, map[string]interface{}{"room_id": room.ID, "joined": true})
	if rejoined {
		// Nothing changed for the other players; just refresh the caller.
		s.sendView(sess, room)
		return
	}
	logger.Log.Infof("Session %s joined room %s", sess.GetID(), room.ID)
	s.broadcaster.BroadcastRoom(room)
}

func (s *GameServer) handleStartGame(sess *session.Session, packet *network.Packet) {
	var req roomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, codes.InvalidArgument, "malformed payload")
		return
	}
	if req.RoomID == "" {
		s.sendError(sess, codes.InvalidArgument, "room id is required")
		return
	}

	room, err := s.store.UpdateRoom(context.Background(), req.RoomID, func(r *game.Room) error {
		return s.engine.Start(r, sess.UserID)
	})
	if err != nil {
		s.rejectCommand(sess, err)
		return
	}

	s.sweeper.Schedule(room.ID, room.PhaseDeadline)
	logger.Log.Infof("Room %s started with %d players", room.ID, len(room.Players))
	s.reply(sess, network.MsgTypeStartGame, map[string]interface{}{"started": true})
	s.broadcaster.BroadcastRoom(room)
}

func (s *GameServer) handleSubmitAction(sess *session.Session, packet *network.Packet) {
	var req submitActionRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, codes.InvalidArgument, "malformed payload")
		return
	}
	if req.RoomID == "" || req.ActionType == "" {
		s.sendError(sess, codes.InvalidArgument, "missing arguments")
		return
	}

	room, err := s.store.UpdateRoom(context.Background(), req.RoomID, func(r *game.Room) error {
		return s.engine.SubmitAction(r, sess.UserID, game.ActionType(req.ActionType), req.TargetID)
	})
	if err != nil {
		s.rejectCommand(sess, err)
		return
	}

	s.reply(sess, network.MsgTypeSubmitAction, map[string]interface{}{"success": true})
	s.broadcaster.BroadcastRoom(room)
	s.afterCommit(room)
}

func (s *GameServer) handleNextPhase(sess *session.Session, packet *network.Packet) {
	var req roomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, codes.InvalidArgument, "malformed payload")
		return
	}
	if req.RoomID == "" {
		s.sendError(sess, codes.InvalidArgument, "room id is required")
		return
	}

	room, err := s.store.UpdateRoom(context.Background(), req.RoomID, func(r *game.Room) error {
		return s.engine.AdvancePhase(r, sess.UserID)
	})
	if err != nil {
		s.rejectCommand(sess, err)
		return
	}

	s.reply(sess, network.MsgTypeNextPhase, map[string]interface{}{"success": true})
	s.broadcaster.BroadcastRoom(room)
}

// afterCommit handles the phase side effects of a successful submitAction
// commit: a night resolution re-arms the conversation deadline, a finished
// game is archived.
func (s *GameServer) afterCommit(room *game.Room) {
	switch room.Phase {
	case game.PhaseDayConversation:
		s.sweeper.Schedule(room.ID, room.PhaseDeadline)
	case game.PhaseGameOver:
		s.sweeper.Schedule(room.ID, time.Time{})
		s.monitor.IncGamesFinished(string(room.Winner))
		if err := s.history.RecordFinishedGame(context.Background(), room); err != nil {
			logger.Log.Errorf("Failed to archive game %s: %v", room.ID, err)
		}
		logger.Log.Infof("Room %s finished, winner: %s", room.ID, room.Winner)
	}
}

func (s *GameServer) reply(sess *session.Session, msgID uint16, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("Error marshalling reply: %v", err)
		return
	}
	sess.Send(msgID, data)
}

func (s *GameServer) sendView(sess *session.Session, room *game.Room) {
	view := game.ViewFor(room, sess.UserID)
	data, err := json.Marshal(view)
	if err != nil {
		logger.Log.Errorf("Error marshalling room view: %v", err)
		return
	}
	sess.Send(network.MsgTypeRoomState, data)
}

// rejectCommand turns a command failure into an error packet. Store-level
// not-found maps to NotFound; engine rejections carry their own code.
func (s *GameServer) rejectCommand(sess *session.Session, err error) {
	if errors.Is(err, persistence.ErrRoomNotFound) {
		s.sendError(sess, codes.NotFound, "room not found")
		return
	}
	code := game.RejectionCode(err)
	if code == codes.Internal {
		logger.Log.Errorf("Command failed: %v", err)
		s.sendError(sess, codes.Internal, "internal error")
		return
	}
	s.sendError(sess, code, game.RejectionMessage(err))
}

func (s *GameServer) sendError(sess *session.Session, code codes.Code, message string) {
	data, err := json.Marshal(errorResponse{Code: code.String(), Message: message})
	if err != nil {
		return
	}
	sess.Send(network.MsgTypeError, data)
}
