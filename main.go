package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crocodile-bot/internal/bot"
	"github.com/robalobadob/crocodile-bot/internal/config"
	"github.com/robalobadob/crocodile-bot/internal/game"
	"github.com/robalobadob/crocodile-bot/internal/httpserver"
	"github.com/robalobadob/crocodile-bot/internal/registry"
	"github.com/robalobadob/crocodile-bot/internal/store"
	"github.com/robalobadob/crocodile-bot/internal/telegram"
	"github.com/robalobadob/crocodile-bot/internal/words"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		issueToken(cfg, os.Args[2:])
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vocab, err := words.Load(cfg.WordsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.WordsFile).Msg("failed to load word list")
	}
	log.Info().Int("words", vocab.Len()).Msg("vocabulary loaded")

	backend, err := store.Open(ctx, store.Options{
		Backend:    cfg.StoreBackend,
		Dir:        cfg.StateSaveDir,
		SQLitePath: cfg.SQLitePath,
		RedisURI:   cfg.RedisURI,
		MongoURI:   cfg.MongoURI,
		MongoDB:    cfg.MongoDB,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open state store")
	}
	defer backend.Close()

	api := telegram.NewClient(cfg.BotToken)
	me, err := api.GetMe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("getMe failed, check BOT_TOKEN")
	}
	log.Info().Str("bot", me.Username).Msg("authorized")

	// The bot is built after the store wrapper, so failures reach it through this hook.
	var b *bot.Bot
	games := registry.New(store.WithRetry(backend, 3, 200*time.Millisecond, func(key string, err error) {
		if b != nil {
			b.Alert(context.Background(), "store "+key, err.Error())
		}
	}), game.Deps{
		Words:         vocab,
		RoundTime:     cfg.GameTime,
		ExclusiveTime: cfg.ExclusiveTime,
	})
	b = bot.New(api, games, bot.Options{
		Username:       me.Username,
		Title:          me.FullName(),
		OperatorChatID: cfg.OperatorChatID,
		RoundTime:      cfg.GameTime,
	})

	if _, err := games.LoadAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore games")
	}

	srvOpt := httpserver.Options{
		Games: games,
		Words: vocab,
		Auth:  httpserver.NewAuth(cfg.JWTSecret, cfg.JWTExpiresDays),
	}
	if cfg.WebhookURL != "" {
		srvOpt.Updates = b.Handle
		srvOpt.WebhookSecret = cfg.WebhookSecret
	}
	srv := httpserver.New(srvOpt)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting http server")
		if err := srv.Start(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	if cfg.WebhookURL != "" {
		hook := cfg.WebhookURL + "/webhook/" + cfg.WebhookSecret
		if err := api.SetWebhook(ctx, hook, cfg.WebhookSecret); err != nil {
			log.Fatal().Err(err).Msg("setWebhook failed")
		}
		log.Info().Msg("webhook registered")
		<-ctx.Done()
	} else {
		if err := api.DeleteWebhook(ctx); err != nil {
			log.Warn().Err(err).Msg("deleteWebhook failed")
		}
		log.Info().Dur("timeout", cfg.PollTimeout).Msg("long polling")
		api.Poll(ctx, cfg.PollTimeout, func(u telegram.Update) { b.Handle(ctx, u) })
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	srv.Wait()
	if err := games.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("final flush")
	}
}

func setupLogging(cfg *config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// issueToken prints an operator JWT for the debug endpoints.
func issueToken(cfg *config.Config, args []string) {
	name := "operator"
	if len(args) > 0 {
		name = args[0]
	}
	tok, exp, err := httpserver.NewAuth(cfg.JWTSecret, cfg.JWTExpiresDays).SignOperatorToken(name)
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Println(tok)
	log.Info().Str("operator", name).Time("expires", exp).Msg("token issued")
}
