package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/kalambet/chatcal/internal/config"
	"github.com/kalambet/chatcal/internal/extract"
	"github.com/kalambet/chatcal/internal/session"
	"github.com/kalambet/chatcal/internal/storage"
	"github.com/kalambet/chatcal/internal/transcribe"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the assistant; events found in its replies are saved",
	Long: `Talk to the assistant through the chatcal server.

With a message argument chatcal sends it once and exits. Without one it
starts an interactive session; type /reset to start over and /quit to leave.

Examples:
  chatcal chat "dentist tomorrow at 3pm, it's important"
  chatcal chat --audio ./memo.m4a
  chatcal chat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, _ := cmd.Flags().GetString("audio")
		width, _ := cmd.Flags().GetInt("width")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		sess := newChatSession(cfg, storage.NewEventStore(store))
		out := &transcriptPrinter{w: os.Stdout, width: width}
		ctx := cmd.Context()

		switch {
		case audio != "":
			bridge := transcribe.NewBridge(cfg.Client.ServerURL)
			if _, err := sendAudio(ctx, bridge, sess, audio); err != nil {
				return err
			}
			out.flush(sess.Transcript())
			return nil
		case len(args) > 0:
			if err := sess.Send(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			out.flush(sess.Transcript())
			return nil
		}

		return runREPL(ctx, sess, os.Stdin, out)
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a voice memo through the chatcal server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		send, _ := cmd.Flags().GetBool("send")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		bridge := transcribe.NewBridge(cfg.Client.ServerURL)
		if !send {
			res, err := transcribeFile(cmd.Context(), bridge, args[0])
			if err != nil {
				return err
			}
			reportOutcome(res)
			if res.Text != "" {
				fmt.Println(res.Text)
			}
			return nil
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		sess := newChatSession(cfg, storage.NewEventStore(store))
		sent, err := sendAudio(cmd.Context(), bridge, sess, args[0])
		if err != nil {
			return err
		}
		if sent {
			(&transcriptPrinter{w: os.Stdout, width: 80}).flush(sess.Transcript())
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().String("audio", "", "transcribe this audio file and send the text")
	chatCmd.Flags().Int("width", 80, "wrap replies at this many columns")
	transcribeCmd.Flags().Bool("send", false, "send recognised speech to the assistant")
}

func newChatSession(cfg config.Config, store session.Appender) *session.Session {
	ex := extract.NewExtractor(extract.WithStrict(cfg.Extract.Strict))
	return session.New(session.NewHTTPTransport(cfg.Client.ServerURL), ex, store)
}

func transcribeFile(ctx context.Context, bridge *transcribe.Bridge, path string) (transcribe.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()
	return bridge.Transcribe(ctx, filepath.Base(path), f)
}

// sendAudio transcribes path and forwards real speech to sess. It reports
// whether anything was sent.
func sendAudio(ctx context.Context, bridge *transcribe.Bridge, sess transcribe.Sender, path string) (bool, error) {
	res, err := transcribeFile(ctx, bridge, path)
	if err != nil {
		return false, err
	}
	reportOutcome(res)
	return transcribe.Forward(ctx, sess, res)
}

func reportOutcome(res transcribe.Result) {
	if res.Outcome == transcribe.Speech {
		printStep("Heard: %s", res.Text)
		return
	}
	title, hint := res.Outcome.Prompt()
	printWarning("%s. %s", title, hint)
}

func runREPL(ctx context.Context, sess *session.Session, in io.Reader, out *transcriptPrinter) error {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(os.Stderr, colorize(boldColor, "chatcal")+" - /reset to start over, /quit to leave")
	for {
		fmt.Fprint(os.Stderr, colorize(userColor, "> "))
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			return nil
		case l, ok := <-lines:
			if !ok {
				return scanner.Err()
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			sess.Reset()
			out.reset()
			printSuccess("Conversation cleared")
			continue
		}

		if err := sess.Send(ctx, line); err != nil {
			if errors.Is(err, session.ErrEmptyInput) {
				continue
			}
			printError("%v", err)
		}
		out.flush(sess.Transcript())
	}
}

// transcriptPrinter writes assistant turns not yet shown.
type transcriptPrinter struct {
	w     io.Writer
	width int
	seen  int
}

func (p *transcriptPrinter) flush(entries []session.Entry) {
	for _, e := range entries[min(p.seen, len(entries)):] {
		if e.Role != session.RoleAssistant {
			continue
		}
		if e.EventAdded {
			fmt.Fprintln(p.w, colorize(addedColor, "✓ "+e.Text))
			continue
		}
		fmt.Fprintln(p.w, colorize(botColor, wordwrap.String(e.Text, p.width)))
	}
	p.seen = len(entries)
}

func (p *transcriptPrinter) reset() { p.seen = 0 }
