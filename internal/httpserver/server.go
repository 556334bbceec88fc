// internal/httpserver/server.go
//
// HTTP surface of the bot.
// Responsibilities:
//   - Router + middleware (JSON, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/debug/words".
//   - Telegram webhook: POST /webhook/{secret}.
//   - Operator endpoints (operator JWT required): /debug/games, /debug/games/{key}.
//
// Notes:
//   - The webhook answers 200 as soon as the update is decoded; the update
//     is processed on its own goroutine so Telegram never waits on a game.
//     Wait blocks until those goroutines finish; call it after Shutdown and
//     before closing the registry.
//   - Debug output comes from Game.Debug and is never persisted.

package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crocodile-bot/internal/game"
	"github.com/robalobadob/crocodile-bot/internal/registry"
	"github.com/robalobadob/crocodile-bot/internal/telegram"
)

// UpdateHandler processes one Telegram update.
type UpdateHandler func(ctx context.Context, u telegram.Update)

// Vocabulary is the word list as seen by diagnostics.
type Vocabulary interface {
	Len() int
}

type Options struct {
	Games         *registry.Registry
	Words         Vocabulary
	Updates       UpdateHandler // nil disables the webhook route
	WebhookSecret string
	Auth          *Auth
}

// Server bundles the router and the http.Server serving it.
type Server struct {
	r   *chi.Mux
	opt Options
	srv *http.Server

	inflight sync.WaitGroup // webhook updates being processed
}

// New constructs a Server, installs middleware, and registers routes.
func New(opt Options) *Server {
	s := &Server{r: chi.NewRouter(), opt: opt}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)                       // zerolog line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"crocodile-bot","endpoints":["/health","/debug/words","/debug/games"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		n := 0
		if s.opt.Words != nil {
			n = s.opt.Words.Len()
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"words": n})
	})

	if opt.Updates != nil {
		s.r.Post("/webhook/{secret}", s.handleWebhook)
	}

	s.r.Group(func(r chi.Router) {
		r.Use(s.opt.Auth.requireOperator())
		r.Get("/debug/games", s.handleListGames)
		r.Get("/debug/games/{key}", s.handleGame)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start serves HTTP on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Wait blocks until every dispatched webhook update has been processed.
func (s *Server) Wait() { s.inflight.Wait() }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ------------------------------ WEBHOOK ------------------------------------

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	want := []byte(s.opt.WebhookSecret)
	if subtle.ConstantTimeCompare([]byte(chi.URLParam(r, "secret")), want) != 1 ||
		subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), want) != 1 {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var upd telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.opt.Updates(context.WithoutCancel(r.Context()), upd)
	}()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// ------------------------------ DEBUG --------------------------------------

type gameSummary struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Active    bool   `json:"active"`
	Remaining int    `json:"remainingSec"`
	UsedWords int    `json:"usedWords"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := s.opt.Games.Games()
	out := make([]gameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, gameSummary{
			Key:       string(g.Key()),
			Title:     g.Chat().Title,
			Active:    g.Active(),
			Remaining: int(g.RoundRemaining().Seconds()),
			UsedWords: len(g.UsedWords()),
		})
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	g, ok := s.opt.Games.Get(game.ChatKey(chi.URLParam(r, "key")))
	if !ok {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	op, _ := Operator(r)
	log.Debug().Str("operator", op).Str("chat", string(g.Key())).Msg("debug view")
	if err := json.NewEncoder(w).Encode(g.Debug()); err != nil {
		log.Warn().Err(err).Str("chat", string(g.Key())).Msg("encode debug")
	}
}
