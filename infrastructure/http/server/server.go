package server

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/services"
	"chat-relay/wire"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type Options struct {
	MediaDir             string
	MediaURLPrefix       string
	HistoryMarksRead     bool
	ConnectionBufferSize int
	WriteTimeout         time.Duration
	PongTimeout          time.Duration
	MaxFrameBytes        int64
	MaxImageBytes        int
	InboundFrameRate     float64
	InboundFrameBurst    int
	// KnownImageRef, when set, restricts the references a client may reuse.
	KnownImageRef func(ref string) bool
}

// Server is the HTTP face of the chat: the durable requests and the
// websocket upgrade that opens a live session.
type Server struct {
	log      *slog.Logger
	chat     services.IChatService
	accounts services.IAuthService
	issuer   *auth.TokenIssuer
	metrics  *observability.Metrics
	options  Options
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, chat services.IChatService, accounts services.IAuthService,
	issuer *auth.TokenIssuer, metrics *observability.Metrics, options Options) *Server {
	return &Server{
		log:      log,
		chat:     chat,
		accounts: accounts,
		issuer:   issuer,
		metrics:  metrics,
		options:  options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Identity comes from the token, not from cookies, so cross origin
			// upgrades cannot ride on an ambient session.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	authenticated := auth.Middleware(s.issuer, s.unauthorized)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(authenticated)
	private.HandleFunc("/auth/me", s.me).Methods(http.MethodGet)
	private.HandleFunc("/messages/users", s.users).Methods(http.MethodGet)
	private.HandleFunc("/messages/send/{id}", s.sendMessage).Methods(http.MethodPost)
	private.HandleFunc("/messages/read/{id}", s.markRead).Methods(http.MethodPut)
	private.HandleFunc("/messages/{id}", s.history).Methods(http.MethodGet)

	r.Handle("/ws", authenticated(http.HandlerFunc(s.serveWS)))
	r.Handle("/metrics", s.metrics.Handler())
	if s.options.MediaDir != "" {
		prefix := strings.TrimSuffix(s.options.MediaURLPrefix, "/") + "/"
		r.PathPrefix(prefix).Handler(mediaHeaders(http.StripPrefix(prefix, http.FileServer(http.Dir(s.options.MediaDir)))))
	}
	return r
}

// mediaHeaders keeps uploaded files inert: the browser must not sniff them
// into another type, nor run anything they contain on this origin.
func mediaHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "sandbox")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("Request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, errors.ErrNotAuthenticated)
}

// fail turns an error of the taxonomy into a structured JSON failure.
// Internal details never leave the process.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errors.MapToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if code == errors.CodeInternal {
			message = "internal error"
		}
	} else {
		s.log.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, wire.ErrorResponse{Code: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
