package board

import (
	"github.com/opus-domini/activityboard/internal/catalog"
)

const (
	LoadingMessage    = "Loading activities..."
	LoadErrorMessage  = "Unable to load activities."
	SelectPlaceholder = "-- Select an activity --"
	ParticipantsTitle = "Participants"
	NoParticipantsYet = "No participants yet — be the first!"
	scheduleLabel     = "Schedule:"
)

// Status is the load state: idle, then loading, then rendered or error.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusRendered Status = "rendered"
	StatusError    Status = "error"
)

// View is the display tree for one catalog snapshot.
type View struct {
	Status            Status
	Placeholder       string
	SelectPlaceholder string
	Options           []Option
	Cards             []Card
}

type Option struct {
	Value string
	Label string
}

type Card struct {
	Name          string
	Description   string
	ScheduleLabel string
	Schedule      string
	Participants  Participants
}

type Participants struct {
	Title string
	Count int
	// Entries is empty exactly when EmptyMessage is set.
	Entries      []Participant
	EmptyMessage string
}

type Participant struct {
	Email      string
	Unregister *UnregisterAction
}

// UnregisterAction identifies the participant an unregister control acts on.
type UnregisterAction struct {
	Activity string
	Email    string
	Title    string
}

type RenderOptions struct {
	// Unregister adds an unregister action to every participant entry.
	Unregister bool
}

// Render builds the display tree for c. It has no side effects.
func Render(c catalog.Catalog, opts RenderOptions) View {
	activities := c.Activities()
	view := View{
		Status:            StatusRendered,
		SelectPlaceholder: SelectPlaceholder,
		Options:           make([]Option, 0, len(activities)),
		Cards:             make([]Card, 0, len(activities)),
	}
	for _, a := range activities {
		view.Options = append(view.Options, Option{Value: a.Name, Label: a.Name})
		view.Cards = append(view.Cards, Card{
			Name:          a.Name,
			Description:   a.Description,
			ScheduleLabel: scheduleLabel,
			Schedule:      a.Schedule,
			Participants:  renderParticipants(a, opts),
		})
	}
	return view
}

func renderParticipants(a catalog.Activity, opts RenderOptions) Participants {
	p := Participants{Title: ParticipantsTitle, Count: len(a.Participants)}
	if len(a.Participants) == 0 {
		p.EmptyMessage = NoParticipantsYet
		return p
	}
	p.Entries = make([]Participant, 0, len(a.Participants))
	for _, email := range a.Participants {
		entry := Participant{Email: email}
		if opts.Unregister {
			entry.Unregister = &UnregisterAction{
				Activity: a.Name,
				Email:    email,
				Title:    "Unregister " + email,
			}
		}
		p.Entries = append(p.Entries, entry)
	}
	return p
}

// placeholderView replaces the cards with a single message, keeping the
// select options of the previous view.
func placeholderView(prev View, status Status, message string) View {
	return View{
		Status:            status,
		Placeholder:       message,
		SelectPlaceholder: SelectPlaceholder,
		Options:           prev.Options,
	}
}

// card returns the card for the named activity.
func (v View) card(name string) (Card, bool) {
	for _, c := range v.Cards {
		if c.Name == name {
			return c, true
		}
	}
	return Card{}, false
}
