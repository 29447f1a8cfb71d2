// fieldpoll is a command line client for the field I/O core. It discovers
// the fields a core serves, polls them for changes and mints API tokens.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/nerrad567/gray-logic-fieldio/internal/api"
	"github.com/nerrad567/gray-logic-fieldio/internal/fieldio"
)

// Version information - set at build time via ldflags
var version = "dev"

const usage = `Gray Logic field poller.

The default url is http://127.0.0.1:8090. A token is taken from --token, or
minted from --secret (or GRAYLOGIC_JWT_SECRET) when no token is given.

Usage:
    fieldpoll topology [--url=<url>] [--token=<token> | --secret=<secret>]
        [--issuer=<issuer>] [--json]
    fieldpoll poll [--url=<url>] [--token=<token> | --secret=<secret>]
        [--issuer=<issuer>] [--driver=<monikers>]
        [--interval=<interval>] [--count=<count>]
    fieldpoll token --secret=<secret> [--issuer=<issuer>]
        [--subject=<subject>] [--ttl=<ttl>]
    fieldpoll -h | --help
    fieldpoll --version

Options:
    -h --help               Show this screen.
    --version               Show version.
    --url=<url>             Core base url.
    --token=<token>         API bearer token.
    --secret=<secret>       JWT secret used to mint a token.
    --issuer=<issuer>       JWT issuer [default: graylogic-fieldio].
    --subject=<subject>     Token subject [default: fieldpoll].
    --ttl=<ttl>             Token lifetime [default: 1h].
    --json                  Print the topology as JSON.
    --driver=<monikers>     Comma separated driver monikers to poll.
    --interval=<interval>   Time between polls [default: 1s].
    --count=<count>         Stop after this many polls, 0 polls forever [default: 0].`

const (
	defaultURL     = "http://127.0.0.1:8090"
	requestTimeout = 10 * time.Second
	mintedTokenTTL = time.Hour
)

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the parsed command, writing results to out.
func run(ctx context.Context, opts docopt.Opts, out io.Writer) error {
	if tok, _ := opts.Bool("token"); tok {
		return mintToken(opts, out)
	}

	client, err := newClient(opts)
	if err != nil {
		return err
	}

	if topo, _ := opts.Bool("topology"); topo {
		asJSON, _ := opts.Bool("--json")
		return printTopology(ctx, client, asJSON, out)
	}
	if poll, _ := opts.Bool("poll"); poll {
		return pollLoop(ctx, client, opts, out)
	}
	return errors.New("no command given")
}

func mintToken(opts docopt.Opts, out io.Writer) error {
	secret, _ := opts.String("--secret")
	issuer, _ := opts.String("--issuer")
	subject, _ := opts.String("--subject")
	ttlText, _ := opts.String("--ttl")

	ttl, err := time.ParseDuration(ttlText)
	if err != nil || ttl <= 0 {
		return fmt.Errorf("invalid --ttl %q", ttlText)
	}
	token, err := api.IssueToken(secret, issuer, subject, ttl)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// newClient builds a field client from the connection options.
func newClient(opts docopt.Opts) (*fieldio.Client, error) {
	baseURL, _ := opts.String("--url")
	if baseURL == "" {
		baseURL = defaultURL
	}

	token, _ := opts.String("--token")
	if token == "" {
		secret, _ := opts.String("--secret")
		if secret == "" {
			secret = os.Getenv("GRAYLOGIC_JWT_SECRET")
		}
		if secret == "" {
			return nil, errors.New("one of --token or --secret is required")
		}
		issuer, _ := opts.String("--issuer")
		var err error
		if token, err = api.IssueToken(secret, issuer, "fieldpoll", mintedTokenTTL); err != nil {
			return nil, fmt.Errorf("minting token: %w", err)
		}
	}

	client := fieldio.NewClient(&fieldio.HTTPTransport{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: requestTimeout},
	})

	if monikers, _ := opts.String("--driver"); monikers != "" {
		client.Select(driverSelector(monikers))
	}
	return client, nil
}

// driverSelector selects every field of the listed drivers.
func driverSelector(monikers string) fieldio.Selector {
	want := make(map[string]bool)
	for _, m := range strings.Split(monikers, ",") {
		if m = strings.TrimSpace(m); m != "" {
			want[m] = true
		}
	}
	return func(moniker string, _ fieldio.FieldTopology) bool {
		return want[moniker]
	}
}

func printTopology(ctx context.Context, client *fieldio.Client, asJSON bool, out io.Writer) error {
	if err := client.Discover(ctx); err != nil {
		return fmt.Errorf("discovering fields: %w", err)
	}
	topo := client.Topology()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(topo)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "driver list %d\n", topo.DriverListID)
	fmt.Fprintln(tw, "DRIVER\tFIELD\tTYPE\tACCESS\tLIMITS")
	for _, d := range topo.Drivers {
		for _, f := range d.Fields {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Moniker, f.Name, f.Type, f.Access, f.Limits)
		}
	}
	return tw.Flush()
}

func pollLoop(ctx context.Context, client *fieldio.Client, opts docopt.Opts, out io.Writer) error {
	intervalText, _ := opts.String("--interval")
	interval, err := time.ParseDuration(intervalText)
	if err != nil || interval <= 0 {
		return fmt.Errorf("invalid --interval %q", intervalText)
	}
	count, err := opts.Int("--count")
	if err != nil || count < 0 {
		return errors.New("invalid --count")
	}

	if err := client.Discover(ctx); err != nil {
		return fmt.Errorf("discovering fields: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for n := 0; count == 0 || n < count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		updates, err := client.Poll(ctx)
		if err != nil {
			return fmt.Errorf("polling: %w", err)
		}
		printUpdates(out, updates)
	}
	return nil
}

func printUpdates(out io.Writer, updates []fieldio.Update) {
	stamp := time.Now().Format(time.TimeOnly)
	for _, u := range updates {
		text := "<error>"
		if u.Value != nil {
			text = u.Value.FormatText()
		}
		fmt.Fprintf(out, "%s %s.%s = %s (serial %d)\n", stamp, u.Moniker, u.Field, text, u.Serial)
	}
}
