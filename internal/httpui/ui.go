package httpui

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opus-domini/activityboard/internal/board"
	"github.com/opus-domini/activityboard/internal/events"
	"github.com/opus-domini/activityboard/internal/security"
)

const (
	defaultTitle      = "Extracurricular Activities"
	keepAliveInterval = 25 * time.Second
	noticeCookie      = "activityboard_notice"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type Options struct {
	Title  string
	Logger *slog.Logger
	// Events, when set, enables GET /events and is notified after every
	// successful sign-up or unregister.
	Events *events.Hub
}

type Handler struct {
	board  *board.Board
	logger *slog.Logger
	title  string
	events *events.Hub
}

type pageData struct {
	Title         string
	NoticeSeconds int
	Notice        *board.Notice
	View          board.View
	Form          board.Form
	Intent        *board.UnregisterIntent
	LiveUpdates   bool
}

// Register mounts the board pages on mux. State-changing routes pass
// through guard; unregister routes exist only when the board enables them.
func Register(mux *http.ServeMux, b *board.Board, guard *security.Guard, opts Options) {
	h := &Handler{board: b, logger: opts.Logger, title: strings.TrimSpace(opts.Title), events: opts.Events}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.title == "" {
		h.title = defaultTitle
	}

	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if h.events != nil {
		mux.HandleFunc("GET /events", h.stream)
	}
	mux.Handle("POST /signup", guard.Middleware(http.HandlerFunc(h.signUp)))
	if b.UnregisterEnabled() {
		mux.Handle("POST /unregister", guard.Middleware(http.HandlerFunc(h.confirmUnregister)))
		mux.Handle("POST /unregister/confirm", guard.Middleware(http.HandlerFunc(h.unregister)))
	}
}

// index fetches a fresh catalog on every page load. A failed load still
// renders the page with the error placeholder.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	notice := takeNotice(w, r)
	view, _ := h.board.LoadCatalog(r.Context())
	data := h.page(view, board.Form{}, notice)
	// Pages rendered from a POST must not reload themselves.
	data.LiveUpdates = h.events != nil
	h.render(w, "board", data)
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	res := h.board.SignUp(r.Context(), board.Form{
		Activity: r.PostForm.Get("activity"),
		Email:    r.PostForm.Get("email"),
	})
	if res.Err == nil {
		h.publishChange("signup", r.PostForm.Get("activity"))
		flashNotice(w, res.Notice)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	view := h.board.View()
	if view.Status == board.StatusIdle {
		view, _ = h.board.LoadCatalog(r.Context())
	}
	h.render(w, "board", h.page(view, res.Form, &res.Notice))
}

// confirmUnregister renders the confirmation step; nothing is sent yet.
func (h *Handler) confirmUnregister(w http.ResponseWriter, r *http.Request) {
	intent, ok := h.intent(w, r)
	if !ok {
		return
	}
	data := h.page(h.board.View(), board.Form{}, nil)
	data.Intent = intent
	h.render(w, "confirm", data)
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	intent, ok := h.intent(w, r)
	if !ok {
		return
	}
	notice, err := intent.Confirm(r.Context())
	if err == nil {
		h.publishChange("unregister", intent.Activity)
	}
	flashNotice(w, notice)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) intent(w http.ResponseWriter, r *http.Request) (*board.UnregisterIntent, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return nil, false
	}
	intent, err := h.board.RequestUnregister(r.PostForm.Get("activity"), r.PostForm.Get("email"))
	if err != nil {
		flashNotice(w, board.Notice{Text: board.UnregisterFailed, Kind: board.KindError})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, false
	}
	return intent, true
}

// page assembles template data. notice belongs to the current visitor only;
// the board's own notice is shared by every request and never rendered.
func (h *Handler) page(view board.View, form board.Form, notice *board.Notice) pageData {
	data := pageData{
		Title:         h.title,
		NoticeSeconds: int(board.NoticeTTL.Seconds()),
		View:          view,
		Form:          form,
	}
	if notice != nil && !notice.IsZero() {
		data.Notice = notice
	}
	return data
}

type flash struct {
	Text string     `json:"t"`
	Kind board.Kind `json:"k"`
}

// flashNotice hands notice to the visitor's next page load through a
// cookie that expires with the notice.
func flashNotice(w http.ResponseWriter, notice board.Notice) {
	if notice.IsZero() {
		return
	}
	raw, err := json.Marshal(flash{Text: notice.Text, Kind: notice.Kind})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   int(board.NoticeTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeNotice reads and clears the flash cookie. Unreadable values are
// dropped.
func takeNotice(w http.ResponseWriter, r *http.Request) *board.Notice {
	c, err := r.Cookie(noticeCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Text == "" {
		return nil
	}
	switch f.Kind {
	case board.KindInfo, board.KindSuccess, board.KindError:
	default:
		f.Kind = board.KindInfo
	}
	return &board.Notice{Text: f.Text, Kind: f.Kind}
}

func (h *Handler) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("render page failed", "page", name, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) publishChange(action, activity string) {
	if h.events == nil {
		return
	}
	h.events.Publish(events.NewEvent(events.TypeBoardChanged, map[string]any{
		"action":   action,
		"activity": activity,
	}))
}

// stream serves board events as server-sent events until the client goes
// away. Open pages use it to reload after another client changes the board.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	// The server write timeout is sized for page renders, not streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	ch, unsubscribe := h.events.Subscribe(8)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")

	if err := writeEvent(w, events.NewEvent(events.TypeReady, nil)); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, evt); err != nil {
				h.logger.Debug("event stream closed", "err", err)
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.EventID, evt.Type, data)
	return err
}
