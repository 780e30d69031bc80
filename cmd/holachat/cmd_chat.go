package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"holachat/internal/domain/entity"
	"holachat/internal/usecase"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

var partnersCmd = &cobra.Command{
	Use:   "partners",
	Short: "List the people you have conversations with",
	Args:  cobra.NoArgs,
	RunE:  runPartners,
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Print the conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var sendCmd = &cobra.Command{
	Use:   "send <id> <text>...",
	Short: "Send a message to a user",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSend,
}

// listenCmd keeps the live channel open and prints the active conversation
var listenCmd = &cobra.Command{
	Use:   "listen [id]",
	Short: "Follow a conversation as messages arrive",
	Long: `Connect to the broker and print the active conversation as it changes.
Without an id the most recent partner is opened. Lines typed on standard
input are sent to the active partner. Stops on Ctrl-C or logout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runListen,
}

func runPartners(cmd *cobra.Command, args []string) error {
	a := newApp()
	counterparts, err := usecase.NewDirectoryUseCase(a.repo).LoadCounterparts(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(counterparts) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return nil
	}
	for _, c := range counterparts {
		fmt.Fprintf(out, "%-8s %s\n", c.ID, c.DisplayName)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a := newApp()
	user := a.store.CurrentUser()
	if user == nil {
		return errors.NotAuthenticated("not authenticated: run 'holachat login' first")
	}

	messages, err := usecase.NewHistoryUseCase(a.repo, a.metrics).FetchHistory(cmd.Context(), user.ID, args[0])
	if err != nil {
		return err
	}
	for _, msg := range messages {
		printMessage(cmd.OutOrStdout(), user.ID, msg)
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	a := newApp()
	if a.store.CurrentUser() == nil {
		return errors.NotAuthenticated("not authenticated: run 'holachat login' first")
	}

	ctx := cmd.Context()
	if err := a.chat.SelectCounterpart(ctx, args[0]); err != nil {
		return err
	}
	before := len(a.chat.Snapshot().Messages)
	if err := a.chat.Send(ctx, strings.Join(args[1:], " ")); err != nil {
		return err
	}

	state := a.chat.Snapshot()
	if len(state.Messages) > before {
		last := state.Messages[len(state.Messages)-1]
		fmt.Fprintf(cmd.OutOrStdout(), "Sent #%d.\n", last.ID)
	}
	return nil
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	user := a.store.CurrentUser()
	if user == nil {
		return errors.NotAuthenticated("not authenticated: run 'holachat login' first")
	}
	a.serveMetrics(ctx)

	updates, unsubscribe := a.chat.Subscribe()
	defer unsubscribe()

	if err := a.sessions.Open(ctx); err != nil {
		// The channel stays up; the directory can be retried by selecting.
		logger.Warn("Listen: directory load failed: %v", err)
	}
	if len(args) == 1 {
		if err := a.chat.SelectCounterpart(ctx, args[0]); err != nil {
			logger.Warn("Listen: history for %s failed: %v", args[0], err)
		}
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- a.sessions.Run(ctx)
	}()
	go readInput(ctx, cmd.InOrStdin(), a.chat)

	view := &listenView{out: cmd.OutOrStdout(), local: user.ID}
	view.render(a.chat.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return <-runErr
		case err := <-runErr:
			return err
		case <-updates:
			view.render(a.chat.Snapshot())
		}
	}
}

// readInput sends each non-empty line to the active counterpart.
func readInput(ctx context.Context, in io.Reader, chat *usecase.ChatUseCase) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := chat.Send(ctx, line); err != nil {
				logger.Warn("Listen: send failed: %v", err)
			}
		}
	}
}

// listenView prints only what changed between snapshots.
type listenView struct {
	out        io.Writer
	local      string
	active     string
	printed    int
	connection entity.ConnectionStatus
	lastError  string
}

func (v *listenView) render(state usecase.ChatState) {
	if state.Connection != v.connection {
		v.connection = state.Connection
		fmt.Fprintf(v.out, "-- %s\n", state.Connection)
	}
	if state.ActiveCounterpartID != v.active {
		v.active = state.ActiveCounterpartID
		v.printed = 0
		if v.active != "" {
			fmt.Fprintf(v.out, "-- conversation with %s\n", displayName(state.Counterparts, v.active))
		}
	}
	if state.LastError != "" && state.LastError != v.lastError {
		fmt.Fprintf(v.out, "!! %s\n", state.LastError)
	}
	v.lastError = state.LastError

	if state.Loading || len(state.Messages) < v.printed {
		return
	}
	for _, msg := range state.Messages[v.printed:] {
		printMessage(v.out, v.local, msg)
	}
	v.printed = len(state.Messages)
}

func displayName(counterparts []*entity.Identity, id string) string {
	for _, c := range counterparts {
		if c.ID == id {
			return c.DisplayName
		}
	}
	return entity.FallbackIdentity(id).DisplayName
}

func printMessage(out io.Writer, local string, msg entity.Message) {
	who := msg.SenderID
	if msg.SenderID == local {
		who = "me"
	}
	if msg.CreatedAt != "" {
		fmt.Fprintf(out, "[%s] %s: %s\n", msg.CreatedAt, who, msg.Content)
		return
	}
	fmt.Fprintf(out, "%s: %s\n", who, msg.Content)
}
