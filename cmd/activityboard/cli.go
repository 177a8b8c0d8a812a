package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/opus-domini/activityboard/internal/board"
	"github.com/opus-domini/activityboard/internal/config"
)

var (
	serveFn            = serve
	loadConfigFn       = config.Load
	newAPIFn           = newAPI
	stdinInteractiveFn = stdinInteractive
	watchContextFn     = watchContext
	currentVersionFn   = currentVersion
)

const (
	cmdHelp       = "help"
	flagHelpShort = "-h"
	flagHelpLong  = "--help"
)

func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

func runCLI(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx := commandContext{stdin: stdin, stdout: stdout, stderr: stderr}

	if len(args) == 0 {
		return runListCommand(ctx, nil)
	}

	switch args[0] {
	case "-v", "--version", "version":
		writef(stdout, "activityboard version %s\n", currentVersionFn())
		return 0
	case "list":
		return runListCommand(ctx, args[1:])
	case "signup":
		return runSignUpCommand(ctx, args[1:])
	case "unregister":
		return runUnregisterCommand(ctx, args[1:])
	case "watch":
		return runWatchCommand(ctx, args[1:])
	case "serve":
		return runServeCommand(ctx, args[1:])
	case "doctor":
		return runDoctorCommand(ctx, args[1:])
	case cmdHelp, flagHelpShort, flagHelpLong:
		printRootHelp(stdout)
		return 0
	default:
		writef(stderr, "unknown command: %s\n\n", args[0])
		printRootHelp(stderr)
		return 2
	}
}

// parseFlags parses args into fs and handles -help and stray arguments.
// The returned code is meaningful only when done is true.
func parseFlags(ctx commandContext, fs *flag.FlagSet, args []string, help func(io.Writer)) (code int, done bool) {
	fs.SetOutput(ctx.stderr)
	showHelp := fs.Bool("help", false, "show help")
	if err := fs.Parse(args); err != nil {
		return 2, true
	}
	if *showHelp {
		help(ctx.stdout)
		return 0, true
	}
	if fs.NArg() > 0 {
		writef(ctx.stderr, "unexpected argument(s): %s\n", strings.Join(fs.Args(), " "))
		help(ctx.stderr)
		return 2, true
	}
	return 0, false
}

// openBoard loads config and builds a board wired to the activities server.
func openBoard(ctx commandContext) (*board.Board, config.Config, bool) {
	cfg, err := loadConfigFn()
	if err != nil {
		writef(ctx.stderr, "config: %v\n", err)
		return nil, config.Config{}, false
	}
	logger := newLogger(ctx.stderr, cfg.LogLevel)
	b := board.New(newAPIFn(cfg), board.Options{
		Unregister: cfg.Unregister,
		Logger:     logger,
	})
	return b, cfg, true
}

func runListCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	if code, done := parseFlags(ctx, fs, args, printListHelp); done {
		return code
	}

	b, cfg, ok := openBoard(ctx)
	if !ok {
		return 1
	}
	reqCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	view, err := b.LoadCatalog(reqCtx)
	if err != nil {
		printBoard(ctx.stderr, view)
		return 1
	}
	printBoard(ctx.stdout, view)
	return 0
}

func runSignUpCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	activity := fs.String("activity", "", "activity name")
	email := fs.String("email", "", "student email")
	if code, done := parseFlags(ctx, fs, args, printSignUpHelp); done {
		return code
	}

	b, cfg, ok := openBoard(ctx)
	if !ok {
		return 1
	}
	reqCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Timeout)
	defer cancel()

	res := b.SignUp(reqCtx, board.Form{Activity: *activity, Email: *email})
	switch {
	case errors.Is(res.Err, board.ErrMissingInput):
		printNotice(ctx.stderr, res.Notice)
		printSignUpHelp(ctx.stderr)
		return 2
	case res.Err != nil:
		printNotice(ctx.stderr, res.Notice)
		return 1
	}
	printNotice(ctx.stdout, res.Notice)
	writeln(ctx.stdout)
	printBoard(ctx.stdout, b.View())
	return 0
}

func runUnregisterCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("unregister", flag.ContinueOnError)
	activity := fs.String("activity", "", "activity name")
	email := fs.String("email", "", "participant email")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if code, done := parseFlags(ctx, fs, args, printUnregisterHelp); done {
		return code
	}

	b, cfg, ok := openBoard(ctx)
	if !ok {
		return 1
	}
	intent, err := b.RequestUnregister(*activity, *email)
	switch {
	case errors.Is(err, board.ErrUnregisterDisabled):
		writeln(ctx.stderr, "unregister is disabled (set unregister = true in config)")
		return 1
	case err != nil:
		writeln(ctx.stderr, "Please provide an email and an activity.")
		printUnregisterHelp(ctx.stderr)
		return 2
	}

	if !*yes && !confirm(ctx, intent.Prompt) {
		intent.Cancel()
		printNotice(ctx.stdout, board.Notice{Text: board.UnregisterCancelled, Kind: board.KindInfo})
		return 0
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Timeout)
	defer cancel()
	notice, err := intent.Confirm(reqCtx)
	if err != nil {
		printNotice(ctx.stderr, notice)
		return 1
	}
	printNotice(ctx.stdout, notice)
	writeln(ctx.stdout)
	printBoard(ctx.stdout, b.View())
	return 0
}

// confirm asks prompt on the terminal. Anything but y/yes declines, and a
// non-interactive stdin declines without reading.
func confirm(ctx commandContext, prompt string) bool {
	if !stdinInteractiveFn(ctx.stdin) {
		writeln(ctx.stderr, "stdin is not a terminal; pass -yes to confirm")
		return false
	}
	writef(ctx.stdout, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(ctx.stdin).ReadString('\n')
	if err != nil && line == "" {
		writeln(ctx.stdout)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func stdinInteractive(r io.Reader) bool {
	fd, ok := fileDescriptor(r)
	return ok && term.IsTerminal(int(fd)) //nolint:gosec // fd fits in int on supported platforms
}

func runServeCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if code, done := parseFlags(ctx, fs, args, printServeHelp); done {
		return code
	}
	return serveFn(ctx)
}

func runDoctorCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	if code, done := parseFlags(ctx, fs, args, printDoctorHelp); done {
		return code
	}

	cfg, err := loadConfigFn()
	if err != nil {
		writef(ctx.stderr, "config: %v\n", err)
		return 1
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	start := time.Now()
	cat, apiErr := newAPIFn(cfg).Activities(reqCtx)
	elapsed := time.Since(start).Truncate(time.Millisecond)

	reachable := "reachable"
	activities := fmt.Sprintf("%d", cat.Len())
	if apiErr != nil {
		reachable = "unreachable"
		activities = "-"
	}
	origins := "-"
	if len(cfg.AllowedOrigins) > 0 {
		origins = strings.Join(cfg.AllowedOrigins, ",")
	}

	printHeading(ctx.stdout, "Activity board doctor report")
	printRows(ctx.stdout, []outputRow{
		{Key: "os", Value: runtime.GOOS + "/" + runtime.GOARCH},
		{Key: "config", Value: cfg.Path()},
		{Key: "server", Value: cfg.Server},
		{Key: "token set", Value: fmt.Sprintf("%t", cfg.Token != "")},
		{Key: "timeout", Value: cfg.Timeout.String()},
		{Key: "listen", Value: cfg.ListenAddr},
		{Key: "allowed origins", Value: origins},
		{Key: "unregister", Value: fmt.Sprintf("%t", cfg.Unregister)},
		{Key: "watch", Value: cfg.Watch},
		{Key: "api", Value: reachable},
		{Key: "activities", Value: activities},
		{Key: "latency", Value: elapsed.String()},
	})
	if apiErr != nil {
		writef(ctx.stderr, "api error: %v\n", apiErr)
		return 1
	}
	return 0
}

func printRootHelp(w io.Writer) {
	writeln(w, "Activity board command-line interface")
	writeln(w, "")
	writeln(w, "Usage:")
	writeln(w, "  activityboard [command] [flags]")
	writeln(w, "")
	writeln(w, "Commands:")
	writeln(w, "  list        Print the activities board (default)")
	writeln(w, "  signup      Sign a student up for an activity")
	writeln(w, "  unregister  Remove a participant from an activity")
	writeln(w, "  watch       Reprint the board on a schedule")
	writeln(w, "  serve       Start the web board")
	writeln(w, "  doctor      Check config and server reachability")
	writeln(w, "  version     Print the version")
}

func printListHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  activityboard list")
}

func printSignUpHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  activityboard signup -activity NAME -email EMAIL")
}

func printUnregisterHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  activityboard unregister -activity NAME -email EMAIL [-yes]")
}

func printWatchHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  activityboard watch [-every 30s | -schedule CRON]")
	writeln(w, "")
	writeln(w, "Without flags the watch schedule from config is used.")
}

func printServeHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  activityboard serve")
	writeln(w, "")
	writeln(w, "Starts the web board using config file/env defaults.")
}

func printDoctorHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  activityboard doctor")
}

func currentVersion() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		if strings.TrimSpace(bi.Main.Version) != "" && bi.Main.Version != "(devel)" {
			return bi.Main.Version
		}
	}
	return "dev"
}
