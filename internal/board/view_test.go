package board

import (
	"fmt"
	"testing"

	"github.com/opus-domini/activityboard/internal/catalog"
)

func TestRenderCardsAndOptions(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()
			activities := make([]catalog.Activity, n)
			for i := range activities {
				activities[i] = catalog.Activity{Name: fmt.Sprintf("Activity %d", i)}
			}
			view := Render(catalog.New(activities...), RenderOptions{})
			if len(view.Cards) != n {
				t.Fatalf("cards = %d, want %d", len(view.Cards), n)
			}
			if len(view.Options) != n {
				t.Fatalf("options = %d, want %d", len(view.Options), n)
			}
			if view.SelectPlaceholder != SelectPlaceholder {
				t.Fatalf("SelectPlaceholder = %q", view.SelectPlaceholder)
			}
			for i, opt := range view.Options {
				if opt.Value != activities[i].Name || opt.Label != activities[i].Name {
					t.Fatalf("option %d = %+v", i, opt)
				}
			}
		})
	}
}

func TestRenderEmptyParticipants(t *testing.T) {
	t.Parallel()

	view := Render(catalog.New(catalog.Activity{Name: "Art Club"}), RenderOptions{Unregister: true})
	p := view.Cards[0].Participants
	if p.EmptyMessage != NoParticipantsYet {
		t.Fatalf("EmptyMessage = %q", p.EmptyMessage)
	}
	if p.Entries != nil {
		t.Fatalf("Entries = %v, want none", p.Entries)
	}
	if p.Count != 0 || p.Title != ParticipantsTitle {
		t.Fatalf("header = %q/%d", p.Title, p.Count)
	}
}

func TestRenderParticipants(t *testing.T) {
	t.Parallel()

	emails := []string{"michael@mergington.edu", "daniel@mergington.edu", "emma@mergington.edu"}
	cat := catalog.New(catalog.Activity{
		Name:         "Chess Club",
		Description:  "Learn strategies",
		Schedule:     "Fridays, 3:30 PM",
		Participants: emails,
	})

	view := Render(cat, RenderOptions{})
	card := view.Cards[0]
	if card.Name != "Chess Club" || card.Description != "Learn strategies" || card.Schedule != "Fridays, 3:30 PM" {
		t.Fatalf("card = %+v", card)
	}
	if card.ScheduleLabel != "Schedule:" {
		t.Fatalf("ScheduleLabel = %q", card.ScheduleLabel)
	}
	p := card.Participants
	if p.Count != len(emails) {
		t.Fatalf("Count = %d, want %d", p.Count, len(emails))
	}
	if p.EmptyMessage != "" {
		t.Fatalf("EmptyMessage = %q, want none", p.EmptyMessage)
	}
	if len(p.Entries) != len(emails) {
		t.Fatalf("entries = %d, want %d", len(p.Entries), len(emails))
	}
	for i, e := range p.Entries {
		if e.Email != emails[i] {
			t.Fatalf("entry %d = %q, want %q", i, e.Email, emails[i])
		}
		if e.Unregister != nil {
			t.Fatalf("entry %d has unregister action with feature off", i)
		}
	}
}

func TestRenderUnregisterActions(t *testing.T) {
	t.Parallel()

	cat := catalog.New(catalog.Activity{Name: "Chess Club", Participants: []string{"a@b.com"}})
	entry := Render(cat, RenderOptions{Unregister: true}).Cards[0].Participants.Entries[0]
	want := UnregisterAction{Activity: "Chess Club", Email: "a@b.com", Title: "Unregister a@b.com"}
	if entry.Unregister == nil || *entry.Unregister != want {
		t.Fatalf("Unregister = %+v, want %+v", entry.Unregister, want)
	}
}

func TestRenderIsPure(t *testing.T) {
	t.Parallel()

	cat := catalog.New(catalog.Activity{Name: "Chess Club", Participants: []string{"a@b.com"}})
	first := Render(cat, RenderOptions{})
	first.Cards[0].Participants.Entries[0].Email = "changed"

	second := Render(cat, RenderOptions{})
	if got := second.Cards[0].Participants.Entries[0].Email; got != "a@b.com" {
		t.Fatalf("render shares state between calls: %q", got)
	}
}
