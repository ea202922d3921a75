package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ent0n29/voicecard/internal/card"
	"github.com/ent0n29/voicecard/internal/client"
	"github.com/ent0n29/voicecard/internal/logging"
	"github.com/ent0n29/voicecard/internal/session"
)

type options struct {
	baseURL  string
	cardID    string
	card      card.Payload
	transport string
	timeout   time.Duration
	logLevel  string
	verbose   bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicecard-client: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "voicecard-client: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("voicecard-client", pflag.ContinueOnError)
	fs.StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:8080", "voicecard server base URL")
	fs.StringVar(&opts.cardID, "card-id", "", "card document id to load from the server")
	fs.StringVar(&opts.card.SenderName, "sender", "", "sender name (when no --card-id)")
	fs.StringVar(&opts.card.RecipientName, "recipient", "", "recipient name (when no --card-id)")
	fs.StringVar(&opts.card.Message, "message", "", "card message (when no --card-id)")
	fs.StringVar(&opts.card.TemplateImageURL, "template", "", "template image URL (when no --card-id)")
	fs.StringVar(&opts.transport, "transport", "room", "session transport: room|websocket")
	fs.DurationVar(&opts.timeout, "timeout", 15*time.Minute, "give up after this long")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	fs.BoolVarP(&opts.verbose, "verbose", "v", true, "print state changes")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.baseURL = strings.TrimRight(strings.TrimSpace(opts.baseURL), "/")
	opts.cardID = strings.TrimSpace(opts.cardID)
	opts.transport = strings.ToLower(strings.TrimSpace(opts.transport))
	switch opts.transport {
	case "room", "websocket":
	default:
		return options{}, fmt.Errorf("invalid --transport %q (expected room|websocket)", opts.transport)
	}
	if opts.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if opts.timeout <= 0 {
		return options{}, fmt.Errorf("timeout must be > 0")
	}
	if opts.cardID == "" {
		if err := opts.card.Validate(); err != nil {
			return options{}, fmt.Errorf("either --card-id or a complete card is required: %w", err)
		}
	}
	return opts, nil
}

func run(opts options, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logging.New(opts.logLevel, "text")
	if err != nil {
		return err
	}

	prov := client.NewHTTPProvisioner(opts.baseURL)
	payload := opts.card
	if opts.cardID != "" {
		payload, err = prov.FetchCard(ctx, opts.cardID)
		if err != nil {
			return fmt.Errorf("load card %q: %w", opts.cardID, err)
		}
	}
	if opts.verbose {
		fmt.Fprintf(out, "card: from %s to %s\n", payload.SenderName, payload.RecipientName)
	}

	var dialer client.Dialer = client.RoomDialer{}
	if opts.transport == "websocket" {
		dialer = client.WebsocketDialer{}
	}

	changes := make(chan session.Snapshot, 16)
	driver := client.NewDriver(payload, client.Options{
		Provisioner: prov,
		Dialer:      dialer,
		Logger:      log,
		OnChange: func(s session.Snapshot) {
			select {
			case changes <- s:
			default:
			}
		},
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = driver.Run(runCtx)
	}()
	defer func() {
		runCancel()
		<-runDone
	}()

	driver.Reveal()
	for {
		select {
		case <-ctx.Done():
			driver.Leave()
			runCancel()
			<-runDone
			return reportErrors(driver, out)
		case s := <-changes:
			if opts.verbose {
				printSnapshot(out, s)
			}
			if s.State == session.StateIdle {
				runCancel()
				<-runDone
				return reportErrors(driver, out)
			}
		}
	}
}

// reportErrors drains errors queued before the driver stopped and returns
// the last one.
func reportErrors(d *client.Driver, out io.Writer) error {
	var last error
	for {
		select {
		case err := <-d.Errors():
			fmt.Fprintf(out, "error: %v\n", err)
			last = err
		default:
			return last
		}
	}
}

func printSnapshot(out io.Writer, s session.Snapshot) {
	switch {
	case s.Via != "":
		fmt.Fprintf(out, "state: %s -> %s (request %d)\n", s.Via, s.State, s.Request)
	case s.Details != nil:
		fmt.Fprintf(out, "state: %s room=%s participant=%s server=%s\n", s.State, s.Details.RoomName, s.Details.ParticipantName, s.Details.ServerURL)
	default:
		fmt.Fprintf(out, "state: %s (request %d)\n", s.State, s.Request)
	}
}
