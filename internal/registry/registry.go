// internal/registry/registry.go
//
// Process-wide map from chat key to Game.
// Responsibilities:
//   - GetOrCreate: route a message to its game, creating and persisting
//     a fresh one on first contact.
//   - LoadAll: rebuild every game from the store at startup, dropping
//     sub-thread records that never played and expiring rounds whose timer
//     lapsed while the process was down.
//   - Remember which threads are channel-post threads so replies inside
//     them keep routing to the post game.
//   - Flush/Close: final writes at shutdown.

package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crocodile-bot/internal/game"
	"github.com/robalobadob/crocodile-bot/internal/store"
)

type thread struct{ chat, id int64 }

// Registry owns every Game for the lifetime of the process.
type Registry struct {
	store store.Store
	deps  game.Deps

	mu    sync.Mutex
	games map[game.ChatKey]*game.Game
	posts map[thread]struct{}
}

// New builds an empty registry. deps.Store is set to s.
func New(s store.Store, deps game.Deps) *Registry {
	deps.Store = s
	return &Registry{
		store: s,
		deps:  deps,
		games: make(map[game.ChatKey]*game.Game),
		posts: make(map[thread]struct{}),
	}
}

// SetNotifier installs the round-end notifier for games created or loaded
// afterwards. Call it before LoadAll.
func (r *Registry) SetNotifier(n game.RoundEndNotifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps.Notifier = n
}

// IsPost reports whether threadID in chatID is a known channel-post thread.
func (r *Registry) IsPost(chatID, threadID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.posts[thread{chatID, threadID}]
	return ok
}

// Key derives the chat key for m, consulting the post-thread table.
func (r *Registry) Key(m game.MessageMeta) game.ChatKey {
	return game.KeyFor(m, r)
}

// GetOrCreate returns the game addressed by m. A new game is persisted
// immediately; an existing one has its chat metadata refreshed.
func (r *Registry) GetOrCreate(ctx context.Context, m game.MessageMeta) *game.Game {
	key := r.Key(m)
	info := chatInfo(key, m)

	r.mu.Lock()
	if _, kind, threadID, err := game.ParseKey(key); err == nil && kind == game.KindPost {
		r.posts[thread{m.ChatID, threadID}] = struct{}{}
	}
	g, ok := r.games[key]
	if !ok {
		g = game.New(key, info, r.deps)
		r.games[key] = g
	}
	r.mu.Unlock()

	if !ok {
		log.Info().Str("chat", string(key)).Str("title", info.Title).Msg("new game")
		if err := g.Flush(ctx); err != nil {
			log.Error().Err(err).Str("chat", string(key)).Msg("persist new game")
		}
		return g
	}
	g.UpdateChat(ctx, info)
	return g
}

// Get returns the game for key without creating it.
func (r *Registry) Get(key game.ChatKey) (*game.Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[key]
	return g, ok
}

// Games returns all games sorted by key.
func (r *Registry) Games() []*game.Game {
	r.mu.Lock()
	out := make([]*game.Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// LoadAll restores every stored game. A record that cannot be read or
// parsed is logged and skipped; only a failure to list keys is returned.
func (r *Registry) LoadAll(ctx context.Context) (int, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list games: %w", err)
	}

	var lapsed []*game.Game
	loaded := 0
	for _, k := range keys {
		key := game.ChatKey(k)
		chatID, kind, threadID, err := game.ParseKey(key)
		if err != nil {
			log.Warn().Err(err).Str("chat", k).Msg("skip record")
			continue
		}
		rec, err := r.store.Load(ctx, k)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("chat", k).Msg("load record")
			continue
		}

		if neverPlayed(rec) && kind != game.KindChat {
			if err := r.store.Delete(ctx, k); err != nil {
				log.Error().Err(err).Str("chat", k).Msg("delete unplayed record")
			} else {
				log.Debug().Str("chat", k).Msg("deleted unplayed record")
			}
			continue
		}

		g, expired := game.Restore(key, rec, r.deps)
		r.mu.Lock()
		r.games[key] = g
		if kind == game.KindPost {
			r.posts[thread{chatID, threadID}] = struct{}{}
		}
		r.mu.Unlock()
		if expired {
			lapsed = append(lapsed, g)
		}
		loaded++
	}

	for _, g := range lapsed {
		log.Info().Str("chat", string(g.Key())).Msg("round lapsed while offline")
		g.ExpireRound(ctx)
	}
	log.Info().Int("games", loaded).Int("lapsed", len(lapsed)).Msg("games restored")
	return loaded, nil
}

func neverPlayed(rec *store.Record) bool {
	return !rec.Active && rec.ExclusiveTimer == nil && len(rec.UsedWords) == 0
}

// Flush writes every game and joins the errors.
func (r *Registry) Flush(ctx context.Context) error {
	var errs []error
	for _, g := range r.Games() {
		if err := g.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.Key(), err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes every game and cancels all timers. Timers do not fire
// after Close returns.
func (r *Registry) Close(ctx context.Context) error {
	err := r.Flush(ctx)
	for _, g := range r.Games() {
		g.Close()
	}
	return err
}

func chatInfo(key game.ChatKey, m game.MessageMeta) game.ChatInfo {
	info := game.ChatInfo{
		ID:       m.ChatID,
		Title:    m.ChatTitle,
		Username: m.ChatUsername,
	}
	if _, kind, threadID, err := game.ParseKey(key); err == nil && kind == game.KindTopic {
		info.TopicID = threadID
		info.TopicName = m.TopicName
	}
	return info
}
