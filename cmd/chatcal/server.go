package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/chatcal/internal/agenda"
	"github.com/kalambet/chatcal/internal/api"
	"github.com/kalambet/chatcal/internal/config"
	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/proxy"
	"github.com/kalambet/chatcal/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chatcal server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		noAgenda, _ := cmd.Flags().GetBool("no-agenda")
		return runServer(noAgenda)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running chatcal server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chatcal server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("no-agenda", false, "do not log the daily agenda")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "chatcal.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func runServer(noAgenda bool) error {
	fmt.Fprintf(os.Stderr, "chatcal version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if cfg.Provider.APIKey == "" {
		printWarning("no provider API key configured; /api/chat and /api/transcribe will answer 500")
		printStep("set one with: chatcal config set-api-key <key>, or CHATCAL_API_KEY")
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()
	events := storage.NewEventStore(store)

	var sched *agenda.Scheduler
	if !noAgenda && cfg.Agenda.Schedule != "" {
		sched, err = agenda.New(events, cfg.Agenda.Schedule, slog.Default())
		if err != nil {
			return err
		}
	}

	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewHandler(api.Deps{
		Proxy:           proxy.NewClientWithBaseURL(cfg.Provider.APIKey, cfg.Provider.BaseURL),
		ChatModel:       cfg.Provider.ChatModel,
		TranscribeModel: cfg.Provider.TranscribeModel,
		Events:          events,
		Token:           cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("chatcal listening", "addr", addr, "provider", cfg.Provider.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
		slog.Info("agenda scheduled", "schedule", cfg.Agenda.Schedule)
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("chatcal is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(pidPath)
		return fmt.Errorf("could not stop chatcal (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to chatcal (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient.Timeout = 2 * time.Second

	if err := client.ping(ctx); err != nil {
		printStatus("Server", "stopped (%s)", client.baseURL)
	} else {
		printStatus("Server", "running at %s", client.baseURL)

		var events []event.CalendarEvent
		if err := client.call(ctx, http.MethodGet, "/events", &events); err != nil {
			printStatus("Events", "unavailable (%v)", err)
		} else {
			printStatus("Events", "%d", len(events))
		}
	}

	key := "missing"
	if cfg.Provider.APIKey != "" {
		key = "configured"
	}
	printStatus("API key", "%s", key)
	printStatus("Provider", "%s", cfg.Provider.BaseURL)
	printStatus("Chat model", "%s", cfg.Provider.ChatModel)
	printStatus("Transcribe model", "%s", cfg.Provider.TranscribeModel)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
