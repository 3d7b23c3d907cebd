// Package http exposes the assistant to a messaging bridge: inbound messages
// arrive as webhooks and replies leave as JSON posts.
package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
)

// MessageHandler processes one inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.InboundMessage) error
}

// InboundMessage is the webhook payload posted by the bridge.
type InboundMessage struct {
	ID      string `json:"id,omitempty"`
	From    string `json:"from"`
	Body    string `json:"body"`
	FromMe  bool   `json:"from_me,omitempty"`
	IsGroup bool   `json:"is_group,omitempty"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type acceptedResponse struct {
	ID string `json:"id"`
}

// Server routes webhook traffic.
type Server struct {
	handler  MessageHandler
	router   chi.Router
	limiters *limiterStore
	metrics  http.Handler
	token    string
	inline   bool
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimit allows each sender r messages per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiters = newLimiterStore(r, burst)
	}
}

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithToken requires the bridge to send the token as a bearer credential.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithSync handles messages before responding. Intended for tests and simple bridges.
func WithSync() Option {
	return func(s *Server) {
		s.inline = true
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the webhook server.
func NewServer(handler MessageHandler, opts ...Option) *Server {
	s := &Server{
		handler:  handler,
		limiters: newLimiterStore(rate.Every(time.Second), 5),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Group(func(r chi.Router) {
		r.Use(s.authorize)
		r.Post("/v1/messages", s.receive)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Wait blocks until every accepted message has been handled.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && !validToken(r.Header.Get("Authorization"), s.token) {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validToken(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

func (s *Server) receive(w http.ResponseWriter, r *http.Request) {
	var in InboundMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&in); err != nil {
		s.logger.Warn("Invalid webhook body", "err", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(in.From) == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	if !s.limiters.get(in.From).Allow() {
		s.logger.Warn("Sender rate limit exceeded", "from", in.From, "message_id", in.ID)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	msg := in.toDomain()
	if s.inline {
		if err := s.handler.Handle(r.Context(), msg); err != nil {
			s.logger.Error("Message handling failed", "from", in.From, "message_id", in.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "message handling failed")
			return
		}
		writeJSON(w, http.StatusOK, acceptedResponse{ID: in.ID})
		return
	}

	ctx := context.WithoutCancel(r.Context())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.handler.Handle(ctx, msg); err != nil {
			s.logger.Error("Message handling failed", "from", in.From, "message_id", in.ID, "err", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: in.ID})
}

func (in InboundMessage) toDomain() domain.InboundMessage {
	msg := domain.InboundMessage{
		From:        in.From,
		Body:        in.Body,
		IsSelfSent:  in.FromMe,
		IsGroupChat: in.IsGroup,
	}
	if in.Name != "" || in.Phone != "" {
		profile := domain.Profile{Name: in.Name, Phone: in.Phone}
		msg.SenderProfile = func(context.Context) (domain.Profile, error) {
			return profile, nil
		}
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// limiterStore keeps one token bucket per sender.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterStore(limit rate.Limit, burst int) *limiterStore {
	return &limiterStore{limiters: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

func (s *limiterStore) get(sender string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[sender]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[sender] = l
	}
	return l
}
