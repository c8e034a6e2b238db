package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
)

// StatusFunc returns the JSON body served at /api/status.
type StatusFunc func() (any, error)

// Server exposes the dispatcher over a websocket and a small HTTP API.
type Server struct {
	router     *mux.Router
	dispatcher *Dispatcher
	hub        *Hub
	status     StatusFunc
	upgrader   websocket.Upgrader
	log        *zerolog.Logger
}

// NewServer creates a Server. allowedOrigins restricts browser origins
// allowed to open the websocket; an empty list allows any origin.
func NewServer(dispatcher *Dispatcher, hub *Hub, status StatusFunc, allowedOrigins []string) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		dispatcher: dispatcher,
		hub:        hub,
		status:     status,
		log:        logger.WithComponent("rpc"),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(allowedOrigins),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/ws", s.handleWebSocket)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Listening for hosts on ws://" + ln.Addr().String() + "/ws")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// hijacked websocket connections are not closed by Shutdown
	s.hub.disconnectAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	c := newConn(ws)
	s.hub.add(c)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(s.log)
	}()

	defer func() {
		s.hub.remove(c)
		c.close()
		<-writerDone
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("client", c.id.String()).Msg("WebSocket read error")
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil || req.Method == "" {
			msg := "missing method"
			if err != nil {
				msg = err.Error()
			}
			c.reply(Response{ID: 0, Error: &Error{Code: CodeBadRequest, Message: msg}})
			continue
		}

		s.log.Debug().Str("client", c.id.String()).Int64("id", req.ID).Str("method", req.Method).Msg("Call")
		c.reply(s.dispatcher.Dispatch(req))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.Count(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.status()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// originChecker allows requests without an Origin header (non-browser hosts)
// and, when a list is configured, browsers whose origin host is in it.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if _, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
			return true
		}
		_, ok := set[strings.ToLower(u.Host)]
		return ok
	}
}
