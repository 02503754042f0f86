package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	runtimepkg "github.com/drblury/sqsreporter/internal/runtime"
	buspkg "github.com/drblury/sqsreporter/internal/runtime/bus"
	configpkg "github.com/drblury/sqsreporter/internal/runtime/config"
	"github.com/drblury/sqsreporter/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/sqsreporter/internal/runtime/logging"
)

// engineEvent is one line of the relay input.
type engineEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// relaySummary is printed once the queue has drained.
type relaySummary struct {
	Relayed int `json:"relayed"`
	Skipped int `json:"skipped"`
}

// relayDeps lets tests swap the queue client and environment.
type relayDeps struct {
	Lookup   configpkg.EnvLookup
	Reporter runtimepkg.ReporterDependencies
}

var relayCmd = &cobra.Command{
	Use:   "relay [events-file]",
	Short: "Relay JSON-lines engine events to the queue",
	Long: `Read engine events as JSON lines ({"event": "phaseStarted", "data": {...}})
from a file, or stdin when no file or "-" is given, and publish each one
through the reporter. At end of input the command waits until every send
has settled.

Example:
  sqs-reporter relay --script load-test.yml events.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open events: %w", err)
			}
			defer f.Close()
			in = f
		}

		log, err := newLogger(cmd.ErrOrStderr(), logLevel)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := runRelay(ctx, scriptFile, in, log, relayDeps{Lookup: os.LookupEnv})
		if err != nil {
			return err
		}
		body, err := jsoncodec.Marshal(summary)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
}

func runRelay(ctx context.Context, script string, in io.Reader, log loggingpkg.ServiceLogger, deps relayDeps) (relaySummary, error) {
	var summary relaySummary

	plugin, err := loadPluginConfig(script)
	if err != nil {
		return summary, err
	}
	conf, err := configpkg.Resolve(deps.Lookup, plugin)
	if err != nil {
		return summary, err
	}

	reporter, err := runtimepkg.NewReporter(ctx, conf, log, deps.Reporter)
	if err != nil {
		return summary, err
	}

	pubSub := buspkg.NewInProcess(loggingpkg.NewWatermillAdapter(log))
	defer pubSub.Close()

	if _, err := reporter.Attach(ctx, pubSub); err != nil {
		return summary, err
	}
	emitter, err := buspkg.NewEmitter(pubSub)
	if err != nil {
		return summary, err
	}

	readErr := relayEvents(ctx, in, emitter, log, &summary)

	drained := make(chan error, 1)
	reporter.Cleanup(func(err error) { drained <- err })
	select {
	case err := <-drained:
		if err != nil {
			return summary, err
		}
	case <-ctx.Done():
		return summary, fmt.Errorf("interrupted with %d sends outstanding: %w", reporter.Outstanding(), ctx.Err())
	}

	log.Info("Relay finished", loggingpkg.LogFields{
		"relayed": summary.Relayed,
		"skipped": summary.Skipped,
	})
	return summary, readErr
}

// relayEvents publishes every input line on the bus. Lines naming an unknown
// event are skipped. A malformed stream stops the relay, but whatever was
// already published is still drained by the caller.
func relayEvents(ctx context.Context, in io.Reader, emitter *buspkg.Emitter, log loggingpkg.ServiceLogger, summary *relaySummary) error {
	dec := jsoncodec.NewDecoder(in)
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var ev engineEvent
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode engine event: %w", err)
		}

		if !slices.Contains(buspkg.Topics, ev.Event) {
			log.Info("Skipping unknown engine event", loggingpkg.LogFields{"event": ev.Event})
			summary.Skipped++
			continue
		}
		if err := emitter.Emit(ctx, ev.Event, ev.Data); err != nil {
			return fmt.Errorf("publish %s: %w", ev.Event, err)
		}
		summary.Relayed++
	}
	return nil
}
