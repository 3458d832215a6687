package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/pulse-chat/backend/internal/format"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/faq"
	chatService "github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
)

const replHelp = `Commands:
  /faq            list predefined questions
  /faq N          send predefined question N
  /settings       show current settings
  /set KEY VALUE  change a setting (language, politeness, formality, creativity, length)
  /csv [FILE]     export the last table as CSV
  /reset          clear the conversation
  /quit           exit
Ctrl+C while waiting cancels the question.`

// chatCmd starts an interactive chat session
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	client := newClient()
	settings := chat.NewSettingsHolder(chat.DefaultSettings())
	conv := chatService.NewConversation(client, settings, chatService.Options{RequestTimeout: cfg.Analytics.RequestTimeout})
	defer conv.Close()

	out := cmd.OutOrStdout()
	session := conv.Mount(cmd.Context())
	if session.Active() {
		fmt.Fprintf(out, "Connected to %s (session %s)\n", cfg.Analytics.BaseURL, session.ID)
	} else {
		fmt.Fprintln(out, "Could not start a chat session; questions will be ignored.")
	}
	fmt.Fprintln(out, "Type /help for commands.")

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	history := historyFile()
	if f, err := os.Open(history); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if err := os.MkdirAll(filepath.Dir(history), 0o700); err == nil {
			if f, err := os.OpenFile(history, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}
		line.Close()
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	r := &repl{
		conv:       conv,
		settings:   settings,
		faqs:       faq.NewCatalog(faq.Seed()),
		in:         line,
		out:        out,
		interrupts: interrupts,
		now:        time.Now,
	}
	return r.run(cmd.Context())
}

func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "pulse-cli", "history")
}

// lineReader is the part of liner.State the loop needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type repl struct {
	conv       *chatService.Conversation
	settings   *chat.SettingsHolder
	faqs       faq.Source
	in         lineReader
	out        io.Writer
	interrupts <-chan os.Signal
	now        func() time.Time
}

var errQuit = errors.New("quit")

func (r *repl) run(ctx context.Context) error {
	for {
		input, err := r.in.Prompt("pulse> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(r.out, "(type /quit to exit)")
				continue
			}
			// EOF (Ctrl+D)
			fmt.Fprintln(r.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if err := r.command(ctx, input); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
			continue
		}
		r.ask(ctx, input)
	}
}

func (r *repl) command(ctx context.Context, input string) error {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/reset":
		r.conv.Reset()
		fmt.Fprintln(r.out, "Conversation cleared.")
	case "/faq":
		questions := r.faqs.List()
		if len(fields) == 1 {
			printFAQs(r.out, questions)
			return nil
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(questions) {
			return fmt.Errorf("faq number must be between 1 and %d", len(questions))
		}
		fmt.Fprintf(r.out, "> %s\n", questions[n-1].Text)
		r.ask(ctx, questions[n-1].Text)
	case "/settings":
		s := r.settings.Settings()
		fmt.Fprintf(r.out, "language=%s politeness=%s formality=%s creativity=%.1f length=%s\n",
			s.Language, s.PolitenessLevel, s.Formality, s.Creativity, s.ResponseLength)
	case "/set":
		if len(fields) < 3 {
			return errors.New("usage: /set KEY VALUE")
		}
		return r.set(fields[1], strings.Join(fields[2:], " "))
	case "/csv":
		path := ""
		if len(fields) > 1 {
			path = fields[1]
		}
		return r.exportCSV(path)
	default:
		return fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return nil
}

func (r *repl) set(key, value string) error {
	s := r.settings.Settings()
	switch key {
	case "language":
		s.Language = value
	case "politeness":
		s.PolitenessLevel = value
	case "formality":
		s.Formality = value
	case "creativity":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("creativity must be a number: %w", err)
		}
		s.Creativity = v
	case "length":
		s.ResponseLength = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return r.settings.Update(s)
}

// ask sends one question and blocks until it finishes. An interrupt while waiting
// cancels the question.
func (r *repl) ask(ctx context.Context, question string) {
	ticket, err := r.conv.Send(question)
	if err != nil {
		fmt.Fprintf(r.out, "(ignored: %v)\n", err)
		return
	}
	fmt.Fprintln(r.out, "...")

	select {
	case <-ticket.Done():
	case <-r.interrupts:
		r.conv.Cancel()
		<-ticket.Done()
	case <-ctx.Done():
		r.conv.Cancel()
		<-ticket.Done()
	}

	res := ticket.Result()
	switch res.Outcome {
	case chatService.OutcomeReplied:
		printReply(r.out, *res.Reply)
	case chatService.OutcomeCancelled:
		fmt.Fprintln(r.out, "(cancelled)")
	case chatService.OutcomeTimedOut:
		fmt.Fprintln(r.out, "(timed out)")
	default:
		fmt.Fprintln(r.out, "(request failed, see logs)")
	}
}

func (r *repl) exportCSV(path string) error {
	messages := r.conv.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].HasTable() {
			continue
		}
		csv, err := format.TableCSV(messages[i].TableHTML)
		if err != nil {
			return err
		}
		if path == "" {
			path = format.CSVFilename(r.now())
		}
		if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Saved %s\n", path)
		return nil
	}
	return format.ErrNoTable
}

func printReply(w io.Writer, m chat.Message) {
	fmt.Fprintln(w, plain(m.Content))
	if m.ChartURL != "" {
		fmt.Fprintf(w, "Chart: %s\n", m.ChartURL)
	}
	if m.Explanation != "" {
		fmt.Fprintln(w, plain(m.Explanation))
	}
	if m.HasTable() {
		fmt.Fprintln(w, "(table attached, export with /csv)")
	}
}

func plain(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
