package relayserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"teambond/internal/domain"
	"teambond/internal/relay"
)

const maxBody = 1 << 20

// Server serves the relay REST API.
type Server struct {
	store  Storage
	log    zerolog.Logger
	router *mux.Router
	now    func() time.Time
}

// New builds a Server over store.
func New(store Storage, log zerolog.Logger) *Server {
	s := &Server{
		store:  store,
		log:    log.With().Str("component", "relayserver").Logger(),
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("Relay listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) routes() {
	r := s.router
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))

	users := r.PathPrefix(relay.DefaultUsersPath).Subrouter()
	users.HandleFunc("/public_key/{username}", s.getPublicKey).Methods(http.MethodGet)
	users.HandleFunc("/update_public_key", s.updatePublicKey).Methods(http.MethodPost)
	users.HandleFunc("/update_private_key", s.updatePrivateKey).Methods(http.MethodPost)
	users.HandleFunc("/update_recovery_key", s.updateRecoveryKey).Methods(http.MethodPost)
	users.HandleFunc("/backups/{username}", s.getBackups).Methods(http.MethodGet)

	chat := r.PathPrefix(relay.DefaultChatPath).Subrouter()
	chat.HandleFunc("/all_messages/{a}/{b}", s.getMessages).Methods(http.MethodGet)
	chat.HandleFunc("/send_message/{a}/{b}", s.postMessage).Methods(http.MethodPost)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
	}).Methods(http.MethodGet)
}

func (s *Server) getPublicKey(w http.ResponseWriter, r *http.Request) {
	username := domain.Username(mux.Vars(r)["username"])
	key, err := s.store.PublicKey(r.Context(), username)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, key)
}

func (s *Server) updatePublicKey(w http.ResponseWriter, r *http.Request) {
	var req domain.PublicKeyUpdate
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || strings.TrimSpace(req.PublicKey) == "" {
		http.Error(w, "username and publicKey are required", http.StatusBadRequest)
		return
	}
	if err := s.store.PutPublicKey(r.Context(), req.Username, strings.TrimSpace(req.PublicKey)); err != nil {
		s.fail(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("username", req.Username.String()).Msg("Public key updated")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) updatePrivateKey(w http.ResponseWriter, r *http.Request) {
	var req domain.EncryptedKeyBackup
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.CipherText == "" || req.IV == "" {
		http.Error(w, "username, encryptedPrivateKey and privateKeyIv are required", http.StatusBadRequest)
		return
	}
	if err := s.store.PutPasswordBackup(r.Context(), req); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) updateRecoveryKey(w http.ResponseWriter, r *http.Request) {
	var req domain.RecoveryBackup
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.CipherText == "" || req.IV == "" {
		http.Error(w, "username, encryptedRecoveryPrivateKey and recoveryKeyIv are required", http.StatusBadRequest)
		return
	}
	if err := s.store.PutRecoveryBackup(r.Context(), req); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getBackups(w http.ResponseWriter, r *http.Request) {
	username := domain.Username(mux.Vars(r)["username"])
	b, err := s.store.Backups(r.Context(), username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chat := domain.NewChatID(domain.UserID(vars["a"]), domain.UserID(vars["b"]))
	msgs, err := s.store.Messages(r.Context(), chat)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chat := domain.NewChatID(domain.UserID(vars["a"]), domain.UserID(vars["b"]))

	var msg domain.WireMessage
	if !decode(w, r, &msg) {
		return
	}
	if msg.Sender == "" || msg.Content == "" {
		http.Error(w, "sender and content are required", http.StatusBadRequest)
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = domain.NewTimestamp(s.now())
	}
	if err := s.store.AppendMessage(r.Context(), chat, msg); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("Storage error")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
