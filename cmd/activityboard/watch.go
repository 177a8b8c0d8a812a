package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opus-domini/activityboard/internal/board"
	"github.com/opus-domini/activityboard/internal/validate"
)

func watchContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// watchSchedule resolves the refresh schedule: -every wins over -schedule,
// which wins over the configured default.
func watchSchedule(every time.Duration, expr, fallback string) string {
	switch {
	case every > 0:
		return "@every " + every.String()
	case expr != "":
		return expr
	default:
		return fallback
	}
}

func runWatchCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	every := fs.Duration("every", 0, "reload interval, e.g. 30s")
	expr := fs.String("schedule", "", "cron expression for reloads")
	if code, done := parseFlags(ctx, fs, args, printWatchHelp); done {
		return code
	}
	if *every < 0 {
		writeln(ctx.stderr, "-every must be positive")
		return 2
	}

	b, cfg, ok := openBoard(ctx)
	if !ok {
		return 1
	}
	spec := watchSchedule(*every, *expr, cfg.Watch)
	schedule, err := validate.ParseCron(spec)
	if err != nil {
		writef(ctx.stderr, "invalid schedule %q: %v\n", spec, err)
		return 2
	}

	runCtx, stop := watchContextFn()
	defer stop()

	redraw := shouldUsePrettyOutput(ctx.stdout)
	refresh := func() {
		reqCtx, cancel := context.WithTimeout(runCtx, cfg.Timeout)
		defer cancel()
		view, _ := b.LoadCatalog(reqCtx)
		printWatchFrame(ctx, view, redraw)
	}
	refresh()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(schedule, cron.FuncJob(refresh))
	c.Start()
	<-runCtx.Done()
	<-c.Stop().Done()
	return 0
}

func printWatchFrame(ctx commandContext, view board.View, redraw bool) {
	if redraw {
		writef(ctx.stdout, "%s", ansiClear)
	}
	printHeading(ctx.stdout, "Activities at "+time.Now().Format(time.Kitchen))
	printBoard(ctx.stdout, view)
	if !redraw {
		writeln(ctx.stdout)
	}
}
