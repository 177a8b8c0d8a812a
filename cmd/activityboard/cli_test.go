package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opus-domini/activityboard/internal/api"
	"github.com/opus-domini/activityboard/internal/board"
	"github.com/opus-domini/activityboard/internal/catalog"
	"github.com/opus-domini/activityboard/internal/config"
)

type fakeAPI struct {
	mu            sync.Mutex
	activities    []catalog.Activity
	activitiesErr error
	mutateErr     error
	calls         []string
}

func (f *fakeAPI) Activities(context.Context) (catalog.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GET")
	if f.activitiesErr != nil {
		return catalog.Catalog{}, f.activitiesErr
	}
	return catalog.New(f.activities...), nil
}

func (f *fakeAPI) SignUp(_ context.Context, activity, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "POST "+activity+" "+email)
	if f.mutateErr != nil {
		return f.mutateErr
	}
	for i := range f.activities {
		if f.activities[i].Name == activity {
			f.activities[i].Participants = append(f.activities[i].Participants, email)
		}
	}
	return nil
}

func (f *fakeAPI) Unregister(_ context.Context, activity, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "DELETE "+activity+" "+email)
	return f.mutateErr
}

func (f *fakeAPI) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c != "GET" {
			out = append(out, c)
		}
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		Server:     config.DefaultServer,
		Timeout:    time.Second,
		ListenAddr: config.DefaultListenAddr,
		Unregister: true,
		Watch:      config.DefaultWatch,
		DataDir:    "/tmp/activityboard-test",
		LogLevel:   "error",
	}
}

// useFakes swaps the config and API hooks for the duration of the test.
func useFakes(t *testing.T, cfg config.Config, fake *fakeAPI) {
	t.Helper()
	origLoad, origAPI, origInteractive := loadConfigFn, newAPIFn, stdinInteractiveFn
	t.Cleanup(func() {
		loadConfigFn, newAPIFn, stdinInteractiveFn = origLoad, origAPI, origInteractive
	})
	loadConfigFn = func() (config.Config, error) { return cfg, nil }
	newAPIFn = func(config.Config) board.API { return fake }
	stdinInteractiveFn = func(io.Reader) bool { return false }
}

func chessClub() *fakeAPI {
	return &fakeAPI{activities: []catalog.Activity{
		{Name: "Chess Club", Description: "Learn strategies", Schedule: "Fridays", Participants: []string{"michael@mergington.edu"}},
		{Name: "Art Club", Description: "Paint", Schedule: "Wednesdays"},
	}}
}

func invoke(args []string, stdin string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := runCLI(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunCLIDefaultsToList(t *testing.T) {
	fake := chessClub()
	useFakes(t, testConfig(), fake)

	code, out, errOut := invoke(nil, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut)
	}
	for _, fragment := range []string{
		"Chess Club",
		"Schedule: Fridays",
		"Participants [1]",
		"- michael@mergington.edu",
		board.NoParticipantsYet,
	} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("output missing %q:\n%s", fragment, out)
		}
	}
	if strings.Index(out, "Chess Club") > strings.Index(out, "Art Club") {
		t.Fatalf("activities out of server order:\n%s", out)
	}
}

func TestRunCLIListLoadFailure(t *testing.T) {
	useFakes(t, testConfig(), &fakeAPI{activitiesErr: api.ErrNetwork})

	code, _, errOut := invoke([]string{"list"}, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut, board.LoadErrorMessage) {
		t.Fatalf("stderr missing load error: %s", errOut)
	}
}

func TestRunCLISignUp(t *testing.T) {
	fake := chessClub()
	useFakes(t, testConfig(), fake)

	code, out, errOut := invoke([]string{"signup", "-activity", "Chess Club", "-email", "a@b.com"}, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut)
	}
	if !strings.Contains(out, "Signed up a@b.com for Chess Club") {
		t.Fatalf("missing success notice:\n%s", out)
	}
	if !strings.Contains(out, "- a@b.com") {
		t.Fatalf("refreshed board missing new participant:\n%s", out)
	}
	if m := fake.mutations(); len(m) != 1 || m[0] != "POST Chess Club a@b.com" {
		t.Fatalf("mutations = %v", m)
	}
}

func TestRunCLISignUpMissingInput(t *testing.T) {
	fake := chessClub()
	useFakes(t, testConfig(), fake)

	code, _, errOut := invoke([]string{"signup", "-activity", "Chess Club"}, "")
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errOut, board.MissingSignUpInput) {
		t.Fatalf("stderr missing validation message: %s", errOut)
	}
	if m := fake.mutations(); len(m) != 0 {
		t.Fatalf("unexpected mutations: %v", m)
	}
}

func TestRunCLISignUpServerDetail(t *testing.T) {
	fake := chessClub()
	fake.mutateErr = &api.StatusError{Code: http.StatusBadRequest, Detail: "Student already signed up"}
	useFakes(t, testConfig(), fake)

	code, _, errOut := invoke([]string{"signup", "-activity", "Chess Club", "-email", "michael@mergington.edu"}, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut, "Student already signed up") {
		t.Fatalf("stderr missing server detail: %s", errOut)
	}
}

func TestRunCLIUnregisterNonInteractiveDeclines(t *testing.T) {
	fake := chessClub()
	useFakes(t, testConfig(), fake)

	code, out, _ := invoke([]string{"unregister", "-activity", "Chess Club", "-email", "michael@mergington.edu"}, "y\n")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out, board.UnregisterCancelled) {
		t.Fatalf("missing cancel notice:\n%s", out)
	}
	if m := fake.mutations(); len(m) != 0 {
		t.Fatalf("unconfirmed unregister sent %v", m)
	}
}

func TestRunCLIUnregisterPrompt(t *testing.T) {
	tests := []struct {
		answer string
		sent   bool
	}{
		{answer: "y\n", sent: true},
		{answer: "YES\n", sent: true},
		{answer: "n\n", sent: false},
		{answer: "\n", sent: false},
		{answer: "", sent: false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.answer), func(t *testing.T) {
			fake := chessClub()
			useFakes(t, testConfig(), fake)
			stdinInteractiveFn = func(io.Reader) bool { return true }

			code, out, errOut := invoke([]string{"unregister", "-activity", "Chess Club", "-email", "michael@mergington.edu"}, tt.answer)
			if code != 0 {
				t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut)
			}
			if !strings.Contains(out, "Unregister michael@mergington.edu from Chess Club? [y/N]") {
				t.Fatalf("missing prompt:\n%s", out)
			}
			sent := len(fake.mutations()) == 1
			if sent != tt.sent {
				t.Fatalf("sent = %t, want %t", sent, tt.sent)
			}
			if tt.sent && !strings.Contains(out, "Unregistered michael@mergington.edu from Chess Club") {
				t.Fatalf("missing success notice:\n%s", out)
			}
		})
	}
}

func TestRunCLIUnregisterYesSkipsPrompt(t *testing.T) {
	fake := chessClub()
	useFakes(t, testConfig(), fake)

	code, out, errOut := invoke([]string{"unregister", "-yes", "-activity", "Chess Club", "-email", "michael@mergington.edu"}, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut)
	}
	if strings.Contains(out, "[y/N]") {
		t.Fatal("prompt shown with -yes")
	}
	if m := fake.mutations(); len(m) != 1 || m[0] != "DELETE Chess Club michael@mergington.edu" {
		t.Fatalf("mutations = %v", m)
	}
}

func TestRunCLIUnregisterFailure(t *testing.T) {
	fake := chessClub()
	fake.mutateErr = api.ErrNetwork
	useFakes(t, testConfig(), fake)

	code, _, errOut := invoke([]string{"unregister", "-yes", "-activity", "Chess Club", "-email", "michael@mergington.edu"}, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut, board.UnregisterNetworkError) {
		t.Fatalf("stderr missing network message: %s", errOut)
	}
}

func TestRunCLIUnregisterDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Unregister = false
	fake := chessClub()
	useFakes(t, cfg, fake)

	code, _, _ := invoke([]string{"unregister", "-yes", "-activity", "Chess Club", "-email", "a@b.com"}, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if m := fake.mutations(); len(m) != 0 {
		t.Fatalf("mutations = %v", m)
	}
}

func TestRunCLIServeCallsServeFn(t *testing.T) {
	origServe := serveFn
	t.Cleanup(func() { serveFn = origServe })

	called := false
	serveFn = func(commandContext) int {
		called = true
		return 0
	}

	if code, _, _ := invoke([]string{"serve"}, ""); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !called {
		t.Fatal("serveFn was not called")
	}
}

func TestRunCLIUsageErrors(t *testing.T) {
	useFakes(t, testConfig(), chessClub())

	for _, args := range [][]string{
		{"bogus"},
		{"list", "extra"},
		{"signup", "-nope"},
		{"watch", "-every", "-5s"},
		{"watch", "-schedule", "not a cron"},
	} {
		if code, _, _ := invoke(args, ""); code != 2 {
			t.Fatalf("runCLI(%v) = %d, want 2", args, code)
		}
	}
}

func TestRunCLIHelpAndVersion(t *testing.T) {
	origVersion := currentVersionFn
	t.Cleanup(func() { currentVersionFn = origVersion })
	currentVersionFn = func() string { return "1.2.3" }

	code, out, _ := invoke([]string{"version"}, "")
	if code != 0 || out != "activityboard version 1.2.3\n" {
		t.Fatalf("version = %d %q", code, out)
	}
	code, out, _ = invoke([]string{"help"}, "")
	if code != 0 || !strings.Contains(out, "unregister") {
		t.Fatalf("help = %d %q", code, out)
	}
	code, out, _ = invoke([]string{"signup", "-help"}, "")
	if code != 0 || !strings.Contains(out, "-activity NAME -email EMAIL") {
		t.Fatalf("signup help = %d %q", code, out)
	}
}

func TestRunCLIDoctor(t *testing.T) {
	useFakes(t, testConfig(), chessClub())

	code, out, errOut := invoke([]string{"doctor"}, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut)
	}
	for _, fragment := range []string{
		"server: " + config.DefaultServer,
		"api: reachable",
		"activities: 2",
		"config: /tmp/activityboard-test/config.toml",
	} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("doctor output missing %q:\n%s", fragment, out)
		}
	}
}

func TestRunCLIDoctorUnreachable(t *testing.T) {
	useFakes(t, testConfig(), &fakeAPI{activitiesErr: api.ErrNetwork})

	code, out, _ := invoke([]string{"doctor"}, "")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out, "api: unreachable") {
		t.Fatalf("doctor output missing unreachable:\n%s", out)
	}
}

func TestRunCLIWatchPrintsImmediately(t *testing.T) {
	fake := chessClub()
	useFakes(t, testConfig(), fake)
	origWatch := watchContextFn
	t.Cleanup(func() { watchContextFn = origWatch })
	watchContextFn = func() (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx, cancel
	}

	code, out, errOut := invoke([]string{"watch", "-every", "1h"}, "")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut)
	}
	if !strings.Contains(out, "Activities at ") || !strings.Contains(out, "Chess Club") {
		t.Fatalf("watch did not print the board:\n%s", out)
	}
}

func TestWatchSchedulePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		every time.Duration
		expr  string
		want  string
	}{
		{every: 5 * time.Second, expr: "*/5 * * * *", want: "@every 5s"},
		{expr: "*/5 * * * *", want: "*/5 * * * *"},
		{want: config.DefaultWatch},
	}
	for _, tt := range tests {
		if got := watchSchedule(tt.every, tt.expr, config.DefaultWatch); got != tt.want {
			t.Fatalf("watchSchedule(%v, %q) = %q, want %q", tt.every, tt.expr, got, tt.want)
		}
	}
}

func TestStdinInteractiveRejectsNonFiles(t *testing.T) {
	t.Parallel()

	if stdinInteractive(strings.NewReader("y\n")) {
		t.Fatal("string reader reported as terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if stdinInteractive(f) {
		t.Fatal("regular file reported as terminal")
	}
}
