// roomchat - terminal client for the two-party chat web application
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ashureev/roomchat/internal/api"
	"github.com/ashureev/roomchat/internal/chatview"
	"github.com/ashureev/roomchat/internal/config"
	"github.com/ashureev/roomchat/internal/identity"
	"github.com/ashureev/roomchat/internal/transport"
	"github.com/ashureev/roomchat/internal/tui"
	"github.com/ashureev/roomchat/internal/webclient"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:               "chatclient",
	Short:             "Terminal client for the chat web application",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search users to chat with",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var joinCmd = &cobra.Command{
	Use:   "join <username>",
	Short: "Begin a chat with a user and open the room",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

var (
	flagBaseURL string
	flagLogFile string
	flagCookie  string
)

var (
	cfg       *config.Config
	logCloser io.Closer
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagBaseURL, "base-url", "", "chat application URL (overrides CHAT_BASE_URL)")
	flags.StringVar(&flagLogFile, "log-file", "", "log file path (overrides LOG_FILE)")
	flags.StringVar(&flagCookie, "session-cookie", "", "web session cookie value (overrides CHAT_SESSION_COOKIE)")

	rootCmd.AddCommand(searchCmd, joinCmd)
}

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and installs the file logger.
func setup(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load()

	if flagBaseURL != "" {
		os.Setenv("CHAT_BASE_URL", flagBaseURL)
	}
	if flagLogFile != "" {
		os.Setenv("LOG_FILE", flagLogFile)
	}
	if flagCookie != "" {
		os.Setenv("CHAT_SESSION_COOKIE", flagCookie)
	}

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg = c

	logger, closer, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	logCloser = closer
	slog.SetDefault(logger)

	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}
	slog.Info("Starting chat client", "command", cmd.Name(), "base_url", cfg.BaseURL)
	return nil
}

func newLogger(lc config.LogConfig) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(lc.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lc.Level}
	var h slog.Handler = slog.NewJSONHandler(f, opts)
	if !lc.JSON {
		h = slog.NewTextHandler(f, opts)
	}
	return slog.New(h), f, nil
}

func newWebClient() (*webclient.Client, error) {
	return webclient.New(webclient.Options{
		BaseURL:           cfg.BaseURL,
		SessionCookie:     cfg.SessionCookie,
		SessionCookieName: cfg.SessionCookieName,
		Timeout:           cfg.RequestTimeout,
		Logger:            slog.Default(),
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wc, err := newWebClient()
	if err != nil {
		return err
	}
	users, err := wc.Search(ctx, args[0])
	if err != nil {
		slog.Error("Search failed", "error", err)
		return err
	}
	return webclient.RenderSearchResults(cmd.OutOrStdout(), wc.BaseURL(), users)
}

func runJoin(cmd *cobra.Command, args []string) error {
	companion := args[0]
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wc, err := newWebClient()
	if err != nil {
		return err
	}
	if err := wc.BeginChat(ctx, companion); err != nil {
		logger.Error("Failed to begin chat", "companion", companion, "error", err)
		return err
	}

	token, err := identity.NewToken()
	if err != nil {
		return err
	}

	tc, err := transport.New(transport.Options{
		URL:          cfg.BaseURL,
		Path:         cfg.SocketIOPath,
		Namespace:    cfg.Namespace,
		HTTPClient:   wc.HTTPClient(),
		AckTimeout:   cfg.AckTimeout,
		ReconnectMin: cfg.ReconnectMin,
		ReconnectMax: cfg.ReconnectMax,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	if cfg.MetricsEnabled() {
		srv := api.NewServer(cfg.MetricsAddr, api.NewRouter(api.NewHealthHandler(tc), cfg.MetricsAllowedOrigins), logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Debug server forced to shutdown", "error", err)
			}
		}()
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- tc.Run(ctx)
	}()

	model := tui.New(ctx, tui.Options{
		Companion:     companion,
		Notifications: tc.Notifications(),
		View: chatview.Options{
			Emitter:   tc,
			Navigator: wc,
			Token:     token,
			Renderer:  chatview.Renderer{Layout: cfg.TimeFormat},
		},
		Logger: logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	final, err := p.Run()

	// Stops Run when the UI ended without leaving, e.g. on a signal.
	_ = tc.Close()
	if runErr := <-runDone; runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Warn("Transport stopped with error", "error", runErr)
	}

	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			logger.Info("Interrupted")
			return nil
		}
		return fmt.Errorf("run room UI: %w", err)
	}
	if m, ok := final.(tui.Model); ok && m.Err() != nil {
		logger.Warn("Room left with errors", "error", m.Err())
		fmt.Fprintln(cmd.ErrOrStderr(), "left the room:", m.Err())
	}
	logger.Info("Chat client stopped")
	return nil
}
