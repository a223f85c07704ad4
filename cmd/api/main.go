package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/diagnobuddy/backend/internal/config"
	"github.com/diagnobuddy/backend/internal/handler"
	"github.com/diagnobuddy/backend/internal/model/persona"
	"github.com/diagnobuddy/backend/internal/service/ai"
	"github.com/diagnobuddy/backend/internal/service/chat"
	"github.com/diagnobuddy/backend/internal/service/mail"
	"github.com/diagnobuddy/backend/internal/service/relay"
	"github.com/diagnobuddy/backend/internal/service/session"
	"github.com/diagnobuddy/backend/pkg/reveal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())

	var chatService chat.Store
	if cfg.History.DBPath != "" {
		sqliteStore, err := chat.NewSQLiteStore(cfg.History.DBPath)
		if err != nil {
			log.Fatalf("failed to open history database: %v", err)
		}
		defer sqliteStore.Close()
		chatService = sqliteStore
		log.Printf("chat history persisted in %s", cfg.History.DBPath)
	} else {
		chatService = chat.NewService()
		log.Println("HISTORY_DB not set, chat history kept in memory only")
	}

	completer, err := newCompleter(ctx, cfg, personaStore.Default())
	if err != nil {
		log.Fatalf("failed to initialize completion provider: %v", err)
	}

	relayService, err := relay.NewService(completer, chatService)
	if err != nil {
		log.Fatalf("failed to initialize relay: %v", err)
	}

	if cfg.Session.Secret == "" {
		log.Println("warning: SESSION_SECRET not set, issued tokens will not survive a restart")
	}
	sessionService, err := session.NewService(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		log.Fatalf("failed to initialize session service: %v", err)
	}

	// 邮件发送是可选功能
	var mailer *mail.Service
	if cfg.Mail.Enabled() {
		sender := mail.NewSMTPSender(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.Username, cfg.Mail.Password)
		mailer, err = mail.NewService(cfg.Mail.AuthEmail, sender, chatService)
		if err != nil {
			log.Fatalf("failed to initialize mail service: %v", err)
		}
		log.Printf("mail delivery enabled via %s:%d", cfg.Mail.SMTPHost, cfg.Mail.SMTPPort)
	} else {
		log.Println("AUTH_EMAIL/SMTP_HOST not set, chat transcripts cannot be mailed")
	}

	svcs := handler.Services{
		Personas: personaStore,
		History:  chatService,
		Relay:    relayService,
		Sessions: sessionService,
		Reveal: reveal.Options{
			MinInterval: cfg.Stream.MinInterval,
			Budget:      cfg.Stream.Budget,
		},
		HistoryAdminToken: cfg.History.AdminToken,
	}
	if cfg.History.AdminToken == "" {
		log.Println("HISTORY_ADMIN_TOKEN not set, history listing and deletion are disabled")
	}
	if mailer != nil {
		svcs.Mailer = mailer
	}

	startServer(ctx, cfg.Server, handler.NewRouter(svcs))
}

// newCompleter picks the model behind the relay.
func newCompleter(ctx context.Context, cfg *config.Config, p persona.Persona) (ai.Completer, error) {
	switch cfg.Completion.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		completer, err := ai.NewArkCompleter(ctx, chatModel, p)
		if err != nil {
			return nil, err
		}
		log.Printf("using Ark model %s for completions", cfg.AI.Model)
		return completer, nil
	default:
		completer, err := ai.NewHTTPCompleter(cfg.Completion.Endpoint, cfg.Completion.Timeout)
		if err != nil {
			return nil, err
		}
		log.Printf("using hosted completion endpoint %s", cfg.Completion.Endpoint)
		return completer, nil
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("DiagnoBuddy backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
