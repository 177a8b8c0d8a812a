package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opus-domini/activityboard/internal/api"
	"github.com/opus-domini/activityboard/internal/catalog"
	"github.com/opus-domini/activityboard/internal/validate"
)

const (
	MissingSignUpInput     = "Please provide an email and select an activity."
	SignUpFailed           = "Failed to sign up"
	SignUpNetworkError     = "Network error when signing up"
	UnregisterFailed       = "Failed to unregister"
	UnregisterNetworkError = "Network error when unregistering"
	UnregisterCancelled    = "Unregister cancelled."
	signedUpFormat         = "Signed up %s for %s"
	unregisteredFormat     = "Unregistered %s from %s"
	unregisterPromptFormat = "Unregister %s from %s?"
)

var (
	ErrMissingInput       = errors.New("activity and email are required")
	ErrUnregisterDisabled = errors.New("unregister is disabled")
	ErrIntentClosed       = errors.New("unregister intent already used")
)

// API is the activities server as seen by the board.
type API interface {
	Activities(ctx context.Context) (catalog.Catalog, error)
	SignUp(ctx context.Context, activity, email string) error
	Unregister(ctx context.Context, activity, email string) error
}

type Options struct {
	// Unregister enables unregister controls and RequestUnregister.
	Unregister bool
	Logger     *slog.Logger
	// NoticeTTL overrides how long notices stay visible.
	NoticeTTL time.Duration
	// OnChange is called after the view or the notice changes.
	OnChange func()

	after afterFunc
}

// Board is the activity board client. It owns the last rendered view and
// the current notice; every mutation is followed by a full reload.
type Board struct {
	api        API
	logger     *slog.Logger
	unregister bool
	onChange   func()
	notices    *notifier

	mu   sync.Mutex
	view View
}

func New(client API, opts Options) *Board {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Board{
		api:        client,
		logger:     logger,
		unregister: opts.Unregister,
		onChange:   opts.OnChange,
		view:       View{Status: StatusIdle, SelectPlaceholder: SelectPlaceholder},
	}
	b.notices = newNotifier(opts.NoticeTTL, opts.after, b.changed)
	return b
}

// UnregisterEnabled reports whether the unregister feature is on.
func (b *Board) UnregisterEnabled() bool { return b.unregister }

func (b *Board) State() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view.Status
}

func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// Notice returns the visible notice, if any.
func (b *Board) Notice() (Notice, bool) {
	return b.notices.visible()
}

// ShowMessage displays a transient notice, replacing any prior one.
func (b *Board) ShowMessage(text string, kind Kind) Notice {
	return b.notices.show(text, kind)
}

// LoadCatalog fetches the catalog and replaces the view. On failure the view
// shows the error placeholder; the error is logged and returned.
func (b *Board) LoadCatalog(ctx context.Context) (View, error) {
	b.setView(func(prev View) View {
		return placeholderView(prev, StatusLoading, LoadingMessage)
	})

	cat, err := b.api.Activities(ctx)
	if err != nil {
		b.logger.Error("load activities failed", "err", err)
		return b.setView(func(prev View) View {
			return placeholderView(prev, StatusError, LoadErrorMessage)
		}), err
	}
	b.logger.Debug("activities loaded", "count", cat.Len())
	return b.setView(func(View) View {
		return Render(cat, RenderOptions{Unregister: b.unregister})
	}), nil
}

// Form is the sign-up form state.
type Form struct {
	Activity string
	Email    string
}

type SignUpResult struct {
	// Form is cleared on success and kept as submitted otherwise.
	Form   Form
	Notice Notice
	Err    error
}

// SignUp submits form. Empty fields are rejected before any request.
func (b *Board) SignUp(ctx context.Context, form Form) SignUpResult {
	activity := form.Activity
	email := strings.TrimSpace(form.Email)
	if !validate.ActivityName(activity) || !validate.Email(email) {
		return SignUpResult{
			Form:   form,
			Notice: b.ShowMessage(MissingSignUpInput, KindError),
			Err:    ErrMissingInput,
		}
	}

	if err := b.api.SignUp(ctx, activity, email); err != nil {
		b.logger.Warn("sign up failed", "activity", activity, "email", email, "err", err)
		return SignUpResult{
			Form:   form,
			Notice: b.ShowMessage(failureText(err, SignUpFailed, SignUpNetworkError), KindError),
			Err:    err,
		}
	}

	_, _ = b.LoadCatalog(ctx)
	return SignUpResult{
		Notice: b.ShowMessage(fmt.Sprintf(signedUpFormat, email, activity), KindSuccess),
	}
}

// UnregisterIntent is a pending unregister awaiting the caller's approval.
// Nothing is sent to the server until Confirm is called.
type UnregisterIntent struct {
	Activity string
	Email    string
	Prompt   string

	board *Board
	used  atomic.Bool
}

// RequestUnregister prepares an unregister that the caller must confirm.
func (b *Board) RequestUnregister(activity, email string) (*UnregisterIntent, error) {
	if !b.unregister {
		return nil, ErrUnregisterDisabled
	}
	email = strings.TrimSpace(email)
	if !validate.ActivityName(activity) || !validate.Email(email) {
		return nil, ErrMissingInput
	}
	return &UnregisterIntent{
		Activity: activity,
		Email:    email,
		Prompt:   fmt.Sprintf(unregisterPromptFormat, email, activity),
		board:    b,
	}, nil
}

// Confirm performs the unregister, reloads on success and shows the outcome.
func (i *UnregisterIntent) Confirm(ctx context.Context) (Notice, error) {
	if !i.used.CompareAndSwap(false, true) {
		return Notice{}, ErrIntentClosed
	}
	b := i.board
	if err := b.api.Unregister(ctx, i.Activity, i.Email); err != nil {
		b.logger.Warn("unregister failed", "activity", i.Activity, "email", i.Email, "err", err)
		return b.ShowMessage(failureText(err, UnregisterFailed, UnregisterNetworkError), KindError), err
	}

	_, _ = b.LoadCatalog(ctx)
	return b.ShowMessage(fmt.Sprintf(unregisteredFormat, i.Email, i.Activity), KindSuccess), nil
}

// Cancel discards the intent. It is safe to call after Confirm.
func (i *UnregisterIntent) Cancel() {
	i.used.Store(true)
}

func (b *Board) setView(next func(prev View) View) View {
	b.mu.Lock()
	b.view = next(b.view)
	v := b.view
	b.mu.Unlock()

	b.changed()
	return v
}

func (b *Board) changed() {
	if b.onChange != nil {
		b.onChange()
	}
}

// failureText picks the message for a failed mutation: the server's detail
// when present, the network message for transport failures, generic text
// otherwise.
func failureText(err error, generic, network string) string {
	if detail := api.Detail(err); detail != "" {
		return detail
	}
	if api.IsNetwork(err) {
		return network
	}
	return generic
}
