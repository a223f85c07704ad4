package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/diagnobuddy/backend/internal/client"
	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/internal/model/persona"
	"github.com/diagnobuddy/backend/pkg/apperror"
	"github.com/diagnobuddy/backend/pkg/reveal"
	"github.com/diagnobuddy/backend/pkg/utils"
)

var (
	botStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	userStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	timeStyle = lipgloss.NewStyle().Faint(true)
	noteStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
)

func isInteractive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] no .env loaded, using system environment: %v", err)
	}

	rootCmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Chat with DiagnoBuddy from the terminal",
		RunE:  runChat,
	}

	rootCmd.Flags().StringP("server", "s", envOr("DIAGNOBUDDY_SERVER", "http://localhost:8080"), "relay base URL")
	rootCmd.Flags().StringP("email", "e", os.Getenv("DIAGNOBUDDY_EMAIL"), "email the chat history is kept under")
	rootCmd.Flags().StringP("name", "n", envOr("DIAGNOBUDDY_NAME", "You"), "name shown on your turns")
	rootCmd.Flags().String("token-file", defaultTokenFile(), "where the session token is cached")
	rootCmd.Flags().Bool("ws", false, "receive replies over the WebSocket endpoint")
	rootCmd.Flags().Bool("typing", isInteractive(os.Stdout.Fd()), "type replies out character by character")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	tokenFile, _ := cmd.Flags().GetString("token-file")
	useWS, _ := cmd.Flags().GetBool("ws")
	typing, _ := cmd.Flags().GetBool("typing")

	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("--email is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := client.NewAPIClient(server)
	if err != nil {
		return fmt.Errorf("invalid server: %w", err)
	}
	tokens := client.NewTokenCache(client.NewFileStorage(tokenFile))

	bot := persona.NewMemoryStore(persona.Seed()).Default()
	now := time.Now()
	fmt.Printf("%s\n\n%s\n\n---- %s ----\n\n", botStyle.Render(bot.Name), noteStyle.Render(bot.Disclaimer), utils.FormatDate(now))
	printTurn(client.GreetingTurn(bot.Greeting, now))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var send func(context.Context, string)
	if useWS {
		session, err := dialWS(ctx, api, tokens, email)
		if err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		defer session.Close()
		send = func(ctx context.Context, text string) { session.Send(ctx, text) }
	} else {
		send = newHTTPSender(api, tokens, name, email, typing)
	}

	for {
		fmt.Print(userStyle.Render(name) + "> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			send(ctx, line)
		}
	}
}

// newHTTPSender runs each line through the chat controller and types the reply
// out with the reveal effect.
func newHTTPSender(api *client.APIClient, tokens *client.TokenCache, name, email string, typing bool) func(context.Context, string) {
	store := client.NewStore()
	controller := client.NewController(store, tokens, api, name, email)
	effect := reveal.NewEffect(reveal.Options{})

	return func(ctx context.Context, text string) {
		if !controller.Submit(ctx, text) {
			fmt.Println("(message too short)")
			return
		}
		turns := store.Snapshot()
		reply := turns[len(turns)-1]

		fmt.Printf("%s: ", botStyle.Render(reply.Sender))
		if typing {
			printed := 0
			effect.Start(reply.Text, func(prefix string) {
				fmt.Print(prefix[printed:])
				printed = len(prefix)
			}, nil)
			effect.Wait()
		} else {
			fmt.Print(reply.Text)
		}
		fmt.Printf("\n  %s\n", timeStyle.Render(reply.Time))
	}
}

type wsFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type wsSession struct {
	conn   *websocket.Conn
	api    *client.APIClient
	tokens *client.TokenCache
	email  string
}

func dialWS(ctx context.Context, api *client.APIClient, tokens *client.TokenCache, email string) (*wsSession, error) {
	u, err := url.Parse(api.BaseURL())
	if err != nil {
		return nil, err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var hello wsFrame
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	return &wsSession{conn: conn, api: api, tokens: tokens, email: email}, nil
}

func (s *wsSession) Close() {
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.conn.Close()
}

// Send relays text and prints the revealed reply as delta frames arrive. A
// cancelled ctx aborts the pending read and leaves the connection unusable.
func (s *wsSession) Send(ctx context.Context, text string) {
	token, err := s.token(ctx, text)
	if err != nil {
		log.Printf("[chatcli] session: %v", err)
		fmt.Println(client.FallbackText)
		return
	}

	data, _ := json.Marshal(map[string]string{"email": s.email, "message": text})
	if err := s.conn.WriteJSON(wsFrame{Type: "chat", SessionID: token, Data: data}); err != nil {
		log.Printf("[chatcli] write: %v", err)
		return
	}

	stopWatch := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stopWatch()

	fmt.Printf("%s: ", botStyle.Render(client.BotName))
	printed := 0
	for {
		var frame wsFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				fmt.Println()
				return
			}
			log.Printf("[chatcli] read: %v", err)
			return
		}
		switch frame.Type {
		case "delta":
			var delta struct {
				Content string `json:"content"`
			}
			if json.Unmarshal(frame.Data, &delta) == nil && len(delta.Content) >= printed {
				fmt.Print(delta.Content[printed:])
				printed = len(delta.Content)
			}
		case "ai":
			fmt.Printf("\n  %s\n", timeStyle.Render(utils.FormatTime(time.Now())))
			return
		case "error":
			var e struct {
				Message string `json:"message"`
				Kind    string `json:"kind"`
			}
			json.Unmarshal(frame.Data, &e)
			log.Printf("[chatcli] server error: %s", e.Message)
			if e.Kind == string(apperror.KindSession) {
				if err := s.tokens.Clear(); err != nil {
					log.Printf("[chatcli] clear token: %v", err)
				}
			}
			fmt.Println(client.FallbackText)
			return
		}
	}
}

func (s *wsSession) token(ctx context.Context, message string) (string, error) {
	if !s.tokens.IsExpired() {
		if cached, ok := s.tokens.Get(); ok {
			return cached.Token, nil
		}
	}
	issued, err := s.api.IssueToken(ctx, s.email, message)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Put(issued.Token, client.TokenTTL); err != nil {
		log.Printf("[chatcli] persist token: %v", err)
	}
	return issued.Token, nil
}

func printTurn(t chat.Turn) {
	style := botStyle
	if t.IsUser {
		style = userStyle
	}
	fmt.Printf("%s: %s\n  %s\n", style.Render(t.Sender), t.Text, timeStyle.Render(t.Time))
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".diagnobuddy-token.json"
	}
	return filepath.Join(dir, "diagnobuddy", "token.json")
}
