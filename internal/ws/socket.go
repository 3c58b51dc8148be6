package ws

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/rpsdash/internal/config"
	"github.com/kiliankoe/rpsdash/internal/game"
	"github.com/rs/zerolog/log"
)

// ConnCtx is the per-connection state: which player on which session this
// socket speaks for, and the cancel for its session watcher.
type ConnCtx struct {
	SessionID string
	PlayerID  string
	Token     string

	stopWatch func()
}

type identity struct {
	SessionID string
	PlayerID  string
}

type Server struct {
	Repo   *game.Repository
	config config.Config

	mu     sync.Mutex
	tokens map[string]identity   // resume token -> player
	states map[string]game.State // last observed state per session, for export
}

func New(repo *game.Repository, cfg config.Config) *Server {
	return &Server{
		Repo:   repo,
		config: cfg,
		tokens: make(map[string]identity),
		states: make(map[string]game.State),
	}
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// game:create
	io.OnEvent("/", "game:create", func(s socketio.Conn, payload struct {
		Name string `json:"name"`
	}) map[string]any {
		name := strings.TrimSpace(payload.Name)
		if name == "" {
			return srv.err(s, "invalid_name", "Please enter a name")
		}
		sessionID, err := srv.Repo.CreateSession()
		if err != nil {
			return srv.fail(s, err)
		}
		playerID, err := srv.Repo.JoinSession(sessionID, name)
		if err != nil {
			return srv.fail(s, err)
		}
		token := srv.issueToken(sessionID, playerID)
		srv.attach(s, sessionID, playerID, token)
		log.Info().Str("sid", s.ID()).Str("session", sessionID).Str("playerId", playerID).Msg("game:create")
		return map[string]any{"sessionId": sessionID, "playerId": playerID, "playerToken": token}
	})

	// game:join
	io.OnEvent("/", "game:join", func(s socketio.Conn, payload struct {
		SessionID string `json:"sessionId"`
		Name      string `json:"name"`
	}) map[string]any {
		name := strings.TrimSpace(payload.Name)
		if name == "" {
			return srv.err(s, "invalid_name", "Please enter a name")
		}
		playerID, err := srv.Repo.JoinSession(payload.SessionID, name)
		if err != nil {
			return srv.fail(s, err)
		}
		token := srv.issueToken(payload.SessionID, playerID)
		srv.attach(s, payload.SessionID, playerID, token)
		log.Info().Str("sid", s.ID()).Str("session", payload.SessionID).Str("playerId", playerID).Msg("game:join")
		return map[string]any{"sessionId": payload.SessionID, "playerId": playerID, "playerToken": token}
	})

	// game:resume (reconnection)
	io.OnEvent("/", "game:resume", func(s socketio.Conn, payload struct {
		Token string `json:"token"`
	}) map[string]any {
		srv.mu.Lock()
		ident, ok := srv.tokens[payload.Token]
		srv.mu.Unlock()
		if !ok {
			return srv.err(s, "unauthorized", "Invalid player token")
		}
		srv.attach(s, ident.SessionID, ident.PlayerID, payload.Token)
		log.Info().Str("sid", s.ID()).Str("session", ident.SessionID).Str("playerId", ident.PlayerID).Msg("game:resume")
		return map[string]any{"sessionId": ident.SessionID, "playerId": ident.PlayerID}
	})

	// game:choose
	io.OnEvent("/", "game:choose", func(s socketio.Conn, payload struct {
		Choice string `json:"choice"`
	}) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if ctx.SessionID == "" {
			return srv.err(s, "not_joined", "Join a game first")
		}
		sess, err := srv.Repo.GetSession(ctx.SessionID)
		if err != nil {
			return srv.fail(s, err)
		}
		// choices are only writable while the round is live
		if sess.State != game.StatePlaying {
			return srv.err(s, "not_playing", "No round in progress")
		}
		if err := srv.Repo.SubmitChoice(ctx.SessionID, ctx.PlayerID, game.Choice(payload.Choice)); err != nil {
			return srv.fail(s, err)
		}
		log.Info().Str("session", ctx.SessionID).Str("playerId", ctx.PlayerID).Msg("game:choose")
		return map[string]any{"ok": true}
	})

	// game:start
	io.OnEvent("/", "game:start", func(s socketio.Conn) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if ctx.SessionID == "" {
			return srv.err(s, "not_joined", "Join a game first")
		}
		sess, err := srv.Repo.GetSession(ctx.SessionID)
		if err != nil {
			return srv.fail(s, err)
		}
		if leader := sess.Leader(); leader == nil || leader.ID != ctx.PlayerID {
			return srv.fail(s, game.ErrNotLeader)
		}
		if err := srv.Repo.StartRound(ctx.SessionID); err != nil {
			return srv.fail(s, err)
		}
		log.Info().Str("session", ctx.SessionID).Str("playerId", ctx.PlayerID).Msg("game:start")
		return map[string]any{"ok": true}
	})

	// game:leave
	io.OnEvent("/", "game:leave", func(s socketio.Conn) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if ctx.SessionID == "" {
			return map[string]any{"ok": true}
		}
		srv.detach(ctx)
		// remote cleanup is best-effort; the local teardown already happened
		if err := srv.Repo.LeaveSession(ctx.SessionID, ctx.PlayerID); err != nil {
			log.Error().Err(err).Str("session", ctx.SessionID).Str("playerId", ctx.PlayerID).Msg("leave cleanup")
		}
		srv.mu.Lock()
		delete(srv.tokens, ctx.Token)
		srv.mu.Unlock()
		log.Info().Str("session", ctx.SessionID).Str("playerId", ctx.PlayerID).Msg("game:leave")
		*ctx = ConnCtx{}
		s.SetContext(ctx)
		return map[string]any{"ok": true}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		// the player stays joined; only the subscription is released,
		// and the resume token keeps working
		if ctx, ok := s.Context().(*ConnCtx); ok {
			srv.detach(ctx)
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

// attach binds the connection to a player and starts its session watcher.
// Each connection evaluates the round-resolution guard through its own
// watcher, mirroring a fleet of independent subscribed clients.
func (srv *Server) attach(s socketio.Conn, sessionID, playerID, token string) {
	ctx := s.Context().(*ConnCtx)
	srv.detach(ctx)
	ctx.SessionID = sessionID
	ctx.PlayerID = playerID
	ctx.Token = token

	stop, err := srv.Repo.Watch(sessionID, func(sess *game.Session) {
		if sess == nil {
			srv.forgetSession(sessionID)
			s.Emit("game:gone", map[string]any{"sessionId": sessionID})
			return
		}
		srv.maybeExport(sess)
		s.Emit("game:state", game.DeriveView(sess, playerID))
	}, func(err error) {
		srv.err(s, "store_unavailable", err.Error())
	})
	if err != nil {
		srv.fail(s, err)
		return
	}
	ctx.stopWatch = stop
	s.SetContext(ctx)
}

func (srv *Server) detach(ctx *ConnCtx) {
	if ctx.stopWatch != nil {
		ctx.stopWatch()
		ctx.stopWatch = nil
	}
}

func (srv *Server) issueToken(sessionID, playerID string) string {
	token := uuid.NewString()
	srv.mu.Lock()
	srv.tokens[token] = identity{SessionID: sessionID, PlayerID: playerID}
	srv.mu.Unlock()
	return token
}

// maybeExport appends the round result the first time a session is seen
// finished. Many watchers observe the same transition; only one export
// happens per round.
func (srv *Server) maybeExport(sess *game.Session) {
	if !srv.config.ExportEnabled {
		return
	}
	srv.mu.Lock()
	prev := srv.states[sess.ID]
	srv.states[sess.ID] = sess.State
	srv.mu.Unlock()
	if sess.State != game.StateFinished || prev == game.StateFinished || sess.Result == nil {
		return
	}
	if err := game.ExportRound(sess, srv.config.ExportFile); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("failed to export round")
	} else {
		log.Info().Str("session", sess.ID).Str("file", srv.config.ExportFile).Msg("exported round")
	}
}

func (srv *Server) forgetSession(sessionID string) {
	srv.mu.Lock()
	delete(srv.states, sessionID)
	srv.mu.Unlock()
}

// fail maps repository errors onto the wire error codes.
func (srv *Server) fail(s socketio.Conn, err error) map[string]any {
	code := "bad_request"
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		code = "session_not_found"
	case errors.Is(err, game.ErrSessionFull):
		code = "session_full"
	case errors.Is(err, game.ErrAlreadyStarted):
		code = "already_started"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		code = "not_enough_players"
	case errors.Is(err, game.ErrNotLeader):
		code = "not_leader"
	case errors.Is(err, game.ErrStoreUnavailable):
		code = "store_unavailable"
	}
	return srv.err(s, code, err.Error())
}

func (srv *Server) err(s socketio.Conn, code, message string) map[string]any {
	s.Emit("error", map[string]any{"code": code, "message": message})
	return map[string]any{"error": message, "code": code}
}
