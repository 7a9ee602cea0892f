// usagestat is a small operator tool around the usage-statistics core:
// generate identities, validate message files, send or replay messages.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"usagestats/internal/config"
	"usagestats/internal/envelope"
	"usagestats/internal/logger"
	"usagestats/internal/model"
	"usagestats/internal/schema"
	"usagestats/internal/usage"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const usageText = `usage: usagestat <command> [flags]

commands:
  new-id                       print a fresh data context id
  validate [file|-]            validate JSONL messages (gzip allowed)
  send -event NAME [-payload JSON] [-success=false]
                               wrap a payload and send it once
  replay [file|-]              validate and send JSONL messages one by one
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	os.Exit(run(context.Background(), os.Args[1], os.Args[2:], os.Stdin, os.Stdout))
}

func run(ctx context.Context, cmd string, args []string, stdin io.Reader, stdout io.Writer) int {
	switch cmd {
	case "new-id":
		fmt.Fprintln(stdout, uuid.NewString())
		return 0
	case "validate":
		return runValidate(args, stdin, stdout)
	case "send":
		return withEmitter(func(cfg config.Config, e *usage.Emitter) int {
			return runSend(ctx, cfg, e, args, stdout)
		})
	case "replay":
		return withEmitter(func(_ config.Config, e *usage.Emitter) int {
			return runReplay(ctx, e, args, stdin, stdout)
		})
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return 0
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usageText)
	return 2
}

func withEmitter(fn func(config.Config, *usage.Emitter) int) int {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger.Init(cfg)
	if !cfg.Usage.Enabled {
		log.Warn().Msg("usage statistics disabled (USAGE_STATS_ENABLED=false), nothing to send")
		return 0
	}

	e, err := usage.NewEmitter(cfg.Usage, usage.Deps{})
	if err != nil {
		log.Fatal().Err(err).Msg("emitter")
	}
	defer e.Close(context.Background())
	return fn(cfg, e)
}

func runValidate(args []string, stdin io.Reader, stdout io.Writer) int {
	msgs, err := readMessages(argOrStdin(args), stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	v := schema.Default()
	invalid := 0
	for i, msg := range msgs {
		res := v.Validate(msg)
		if res.Valid {
			fmt.Fprintf(stdout, "%d\tok\t%s\t%s\n", i+1, res.Family, res.Revision)
			continue
		}
		invalid++
		fmt.Fprintf(stdout, "%d\tinvalid\t%s\t%v\n", i+1, res.Family, res.Err())
	}
	if invalid > 0 {
		return 1
	}
	return 0
}

func runSend(ctx context.Context, cfg config.Config, e *usage.Emitter, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	event := fs.String("event", "", "event name, e.g. cli.suite.list")
	raw := fs.String("payload", "{}", "event payload as a JSON object")
	success := fs.Bool("success", true, "success flag")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *event == "" {
		fmt.Fprintln(os.Stderr, "send: -event is required")
		return 2
	}

	var p model.Payload
	if err := json.Unmarshal([]byte(*raw), &p); err != nil {
		fmt.Fprintf(os.Stderr, "send: invalid -payload: %v\n", err)
		return 2
	}

	f := envelope.NewFactory(model.Identity{
		DataContextID:         cfg.Usage.DataContextID,
		DataContextInstanceID: cfg.Usage.DataContextInstanceID,
	}, cfg.Usage.GEVersion)
	msg := f.Wrap(model.EventName(*event), p, *success).Message()

	return printReport(stdout, 1, e.Deliver(ctx, msg))
}

func runReplay(ctx context.Context, e *usage.Emitter, args []string, stdin io.Reader, stdout io.Writer) int {
	msgs, err := readMessages(argOrStdin(args), stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	code := 0
	for i, msg := range msgs {
		if c := printReport(stdout, i+1, e.Deliver(ctx, msg)); c != 0 {
			code = c
		}
	}
	return code
}

func printReport(w io.Writer, n int, rep usage.Report) int {
	if !rep.Validation.Valid {
		fmt.Fprintf(w, "%d\tinvalid\t%s\t%v\n", n, rep.Validation.Family, rep.Validation.Err())
		return 1
	}
	if rep.Outcome.Err != nil {
		fmt.Fprintf(w, "%d\t%s\t%s\tstatus=%d\t%v\n", n, rep.Outcome.Kind, rep.Validation.Family, rep.Outcome.Status, rep.Outcome.Err)
		return 1
	}
	fmt.Fprintf(w, "%d\t%s\t%s\tstatus=%d\n", n, rep.Outcome.Kind, rep.Validation.Family, rep.Outcome.Status)
	return 0
}

func argOrStdin(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	return args[0]
}
