// Command banya-cli joins a bill as one participant and lets you claim
// items from a terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/snekaaa/banya-check/internal/apiclient"
	"github.com/snekaaa/banya-check/internal/connector"
	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/protocol"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	wsURL         string
	apiURL        string
	sessionID     string
	participantID string
	name          string
	color         string
	verbose       bool
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("banya-cli", pflag.ContinueOnError)
	flagSet.StringVar(&opts.wsURL, "url", "ws://localhost:3002/ws", "presence socket address")
	flagSet.StringVar(&opts.apiURL, "api", "http://localhost:3002", "REST API base URL")
	flagSet.StringVar(&opts.sessionID, "session", "", "session to join (required)")
	flagSet.StringVar(&opts.participantID, "participant", "", "participant id to act as (required)")
	flagSet.StringVar(&opts.name, "name", "", "display name (defaults to the participant id)")
	flagSet.StringVar(&opts.color, "color", domain.DefaultColor, "avatar colour")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log connector internals")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if opts.sessionID == "" || opts.participantID == "" {
		return fmt.Errorf("--session and --participant are required")
	}
	if opts.name == "" {
		opts.name = opts.participantID
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	api := apiclient.NewClient(opts.apiURL)
	cli := &terminal{api: api, opts: opts}

	conn := connector.New(connector.Options{
		URL: opts.wsURL,
		Identity: connector.Identity{
			SessionID:     opts.sessionID,
			ParticipantID: opts.participantID,
			DisplayName:   opts.name,
			Color:         opts.color,
		},
		Logger: logger,
		Refetch: func(ctx context.Context, event protocol.Event) {
			fmt.Printf("\n[%s]\n", event.EventType())
			cli.printSnapshot(ctx)
		},
		OnState: func(s connector.State) {
			fmt.Printf("\n* %s\n", s)
		},
		OnRoster: func(users []protocol.OnlineUser) {
			fmt.Printf("\n* online: %s\n", formatRoster(users))
		},
	})
	cli.conn = conn

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.Run(ctx)
	}()
	defer func() {
		conn.Close()
		<-done
	}()

	cli.printSnapshot(ctx)
	fmt.Println("\nCommands: /claim <itemId> <qty>, /release <itemId>, /confirm, /unconfirm, /snapshot, /roster, /quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}
			if input == "/quit" {
				fmt.Println("Bye!")
				return nil
			}
			if err := cli.execute(ctx, input); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}

type terminal struct {
	api  *apiclient.Client
	conn *connector.Connector
	opts options
}

func (t *terminal) execute(ctx context.Context, input string) error {
	fields := strings.Fields(input)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch fields[0] {
	case "/claim":
		if len(fields) != 3 {
			return fmt.Errorf("usage: /claim <itemId> <qty>")
		}
		qty, err := decimal.NewFromString(fields[2])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", fields[2])
		}
		res, err := t.api.Claim(ctx, fields[1], t.opts.participantID, qty)
		if err != nil {
			return err
		}
		fmt.Printf("claimed %s of %s, %s left\n", res.Selection.Quantity, fields[1], res.Remaining)
	case "/release":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /release <itemId>")
		}
		res, err := t.api.Release(ctx, fields[1], t.opts.participantID)
		if err != nil {
			return err
		}
		if !res.Released {
			fmt.Println("nothing to release")
			return nil
		}
		fmt.Printf("released %s\n", fields[1])
	case "/confirm":
		if _, err := t.api.Confirm(ctx, t.opts.sessionID, t.opts.participantID); err != nil {
			return err
		}
		fmt.Println("selections confirmed")
	case "/unconfirm":
		if _, err := t.api.Unconfirm(ctx, t.opts.sessionID, t.opts.participantID); err != nil {
			return err
		}
		fmt.Println("selections reopened")
	case "/snapshot":
		t.printSnapshot(ctx)
		return nil
	case "/roster":
		fmt.Printf("%s: %s\n", t.conn.State(), formatRoster(t.conn.Roster()))
		return nil
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}

	// The server is the source of truth after every mutation.
	t.printSnapshot(ctx)
	return nil
}

func (t *terminal) printSnapshot(ctx context.Context) {
	snap, err := t.api.Snapshot(ctx, t.opts.sessionID)
	if err != nil {
		fmt.Printf("failed to load session: %v\n", err)
		return
	}

	fmt.Printf("%s (%s) total %s, paid %s\n", snap.Session.Title, snap.Session.Status, snap.Total, snap.Paid)
	for _, item := range snap.Items {
		kind := ""
		if item.IsCommon {
			kind = " [common]"
		}
		fmt.Printf("  %-10s %-24s %8s x %-5s claimed %-5s left %s%s\n",
			item.ID, item.Name, item.UnitPrice, item.TotalQuantity, item.Claimed, item.Remaining, kind)
	}
	for _, p := range snap.Participants {
		mark := ""
		if p.SelectionConfirmed {
			mark = " ✓"
		}
		fmt.Printf("  %-20s owes %s%s\n", displayName(p.Participant), p.Share.Total, mark)
	}
}

func displayName(p domain.Participant) string {
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		return name
	}
	if p.Username != "" {
		return p.Username
	}
	return p.ID
}

func formatRoster(users []protocol.OnlineUser) string {
	if len(users) == 0 {
		return "nobody"
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.DisplayName)
	}
	return strings.Join(names, ", ")
}
