package board

import (
	"sync"
	"time"
)

// NoticeTTL is how long a notice stays visible.
const NoticeTTL = 4 * time.Second

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notice is a transient status message.
type Notice struct {
	Text string
	Kind Kind
}

func (n Notice) IsZero() bool { return n.Text == "" }

// afterFunc schedules f after d and returns a stop function.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// notifier holds at most one visible notice. Showing a new notice replaces
// the old one and cancels its dismissal.
type notifier struct {
	mu       sync.Mutex
	ttl      time.Duration
	after    afterFunc
	onChange func()

	current Notice
	seq     uint64
	stop    func() bool
}

func newNotifier(ttl time.Duration, after afterFunc, onChange func()) *notifier {
	if ttl <= 0 {
		ttl = NoticeTTL
	}
	if after == nil {
		after = realAfterFunc
	}
	return &notifier{ttl: ttl, after: after, onChange: onChange}
}

func (n *notifier) show(text string, kind Kind) Notice {
	if kind == "" {
		kind = KindInfo
	}
	notice := Notice{Text: text, Kind: kind}

	n.mu.Lock()
	if n.stop != nil {
		n.stop()
	}
	n.seq++
	seq := n.seq
	n.current = notice
	n.stop = n.after(n.ttl, func() { n.dismiss(seq) })
	n.mu.Unlock()

	n.changed()
	return notice
}

// dismiss hides the notice only if it is still the one identified by seq.
func (n *notifier) dismiss(seq uint64) {
	n.mu.Lock()
	if seq != n.seq || n.current.IsZero() {
		n.mu.Unlock()
		return
	}
	n.current = Notice{}
	n.stop = nil
	n.mu.Unlock()

	n.changed()
}

func (n *notifier) visible() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, !n.current.IsZero()
}

func (n *notifier) changed() {
	if n.onChange != nil {
		n.onChange()
	}
}
