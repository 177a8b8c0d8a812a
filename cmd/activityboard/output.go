package main

import (
	"io"
	"os"
	"strconv"
	"strings"

	isatty "github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/opus-domini/activityboard/internal/board"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiClear  = "\033[H\033[2J"

	defaultWidth = 80
	minWidth     = 40
)

type outputRow struct {
	Key   string
	Value string
}

func shouldUsePrettyOutput(w io.Writer) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	fd, ok := fileDescriptor(w)
	if !ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func fileDescriptor(w any) (uintptr, bool) {
	type fdFile interface {
		Fd() uintptr
	}
	f, ok := w.(fdFile)
	if !ok {
		return 0, false
	}
	return f.Fd(), true
}

// outputWidth is the terminal width of w, or defaultWidth when w is not a
// terminal.
func outputWidth(w io.Writer) int {
	fd, ok := fileDescriptor(w)
	if !ok || !term.IsTerminal(int(fd)) { //nolint:gosec // fd fits in int on supported platforms
		return defaultWidth
	}
	width, _, err := term.GetSize(int(fd)) //nolint:gosec // fd fits in int on supported platforms
	if err != nil || width < minWidth {
		return defaultWidth
	}
	return width
}

func printRows(w io.Writer, rows []outputRow) {
	if !shouldUsePrettyOutput(w) {
		for _, row := range rows {
			writef(w, "%s: %s\n", row.Key, row.Value)
		}
		return
	}

	maxKey := 0
	for _, row := range rows {
		if len(row.Key) > maxKey {
			maxKey = len(row.Key)
		}
	}
	for _, row := range rows {
		writef(w, "%s%-*s%s  %s\n", ansiDim, maxKey, row.Key, ansiReset, colorizeValue(row.Value))
	}
}

func printHeading(w io.Writer, title string) {
	if shouldUsePrettyOutput(w) {
		writef(w, "%s%s%s\n", ansiBold, title, ansiReset)
		return
	}
	writeln(w, title)
}

func printNotice(w io.Writer, notice board.Notice) {
	if notice.IsZero() {
		return
	}
	if !shouldUsePrettyOutput(w) {
		writeln(w, notice.Text)
		return
	}
	color := ""
	switch notice.Kind {
	case board.KindSuccess:
		color = ansiGreen
	case board.KindError:
		color = ansiRed
	case board.KindInfo:
		color = ansiYellow
	}
	writef(w, "%s%s%s\n", color, notice.Text, ansiReset)
}

// printBoard writes the view as text: one block per card, participants
// listed under a count badge or the empty-state line.
func printBoard(w io.Writer, view board.View) {
	pretty := shouldUsePrettyOutput(w)
	if view.Placeholder != "" {
		if pretty && view.Status == board.StatusError {
			writef(w, "%s%s%s\n", ansiRed, view.Placeholder, ansiReset)
			return
		}
		writeln(w, view.Placeholder)
		return
	}
	if len(view.Cards) == 0 {
		writeln(w, "no activities")
		return
	}

	width := outputWidth(w)
	for i, card := range view.Cards {
		if i > 0 {
			writeln(w)
		}
		printHeading(w, card.Name)
		for _, line := range wrap(card.Description, width-2) {
			writef(w, "  %s\n", line)
		}
		writef(w, "  %s %s\n", card.ScheduleLabel, card.Schedule)

		badge := "[" + strconv.Itoa(card.Participants.Count) + "]"
		if pretty {
			badge = ansiGreen + badge + ansiReset
		}
		writef(w, "  %s %s\n", card.Participants.Title, badge)
		if card.Participants.EmptyMessage != "" {
			if pretty {
				writef(w, "    %s%s%s\n", ansiDim, card.Participants.EmptyMessage, ansiReset)
			} else {
				writef(w, "    %s\n", card.Participants.EmptyMessage)
			}
			continue
		}
		for _, p := range card.Participants.Entries {
			writef(w, "    - %s\n", p.Email)
		}
	}
}

func colorizeValue(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "true", "ok", "yes", "reachable":
		return ansiGreen + value + ansiReset
	case "false", "unreachable", "failed", "error":
		return ansiRed + value + ansiReset
	case "-", "unknown", "n/a":
		return ansiYellow + value + ansiReset
	default:
		return value
	}
}

// wrap splits text into lines no wider than width, breaking on spaces.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width < 1 {
		width = 1
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
