package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EnvelopeType is the fixed sentinel every bridge message carries. Messages
// with any other type are dropped unread.
const EnvelopeType = "commentkit"

// Action identifies a bridge message. Outbound actions drive the iframe;
// inbound acks report results back to the host page.
type Action string

const (
	ActionLoadComments      Action = "loadComments"
	ActionPostComment       Action = "postComment"
	ActionLogin             Action = "login"
	ActionLogout            Action = "logout"
	ActionTogglePageLike    Action = "togglePageLike"
	ActionToggleCommentLike Action = "toggleCommentLike"

	ActionBridgeReady      Action = "bridgeReady"
	ActionCommentsLoaded   Action = "commentsLoaded"
	ActionCommentPosted    Action = "commentPosted"
	ActionAuthStateChanged Action = "authStateChanged"
	ActionLoginEmailSent   Action = "loginEmailSent"
	ActionError            Action = "error"
)

// Envelope is the wire shape exchanged with the iframe.
type Envelope struct {
	Type      string          `json:"type"`
	Action    Action          `json:"action"`
	MessageID string          `json:"messageId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// State is the outer widget lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateError
	StateReady
)

// Phase is the inner lifecycle once the widget is Ready.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseLoaded
	PhaseSubmitting
)

// InitResult is the subset of the /widget/init response the bridge keeps.
type InitResult struct {
	OriginToken string
	CSRFToken   string
	Domain      string
	SiteID      int64
	Verified    bool
	ExpiresIn   int
}

// InitClient fetches /widget/init with credentials included. Implementations
// must not retry; a failed init surfaces misconfiguration instead of masking
// it.
type InitClient interface {
	Init(ctx context.Context) (InitResult, error)
}

// InitFailure distinguishes the two remediation paths a site owner has from
// everything else. The message shown to visitors never leaks internals.
type InitFailure int

const (
	FailureGeneric InitFailure = iota
	FailureNotRegistered
	FailureNotVerified
)

// InitError wraps an init failure with its user-facing classification.
type InitError struct {
	Failure InitFailure
	cause   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("widget init: %v", e.cause)
}

func (e *InitError) Unwrap() error { return e.cause }

// UserMessage is what the widget renders in place of the comment form.
func (e *InitError) UserMessage() string {
	switch e.Failure {
	case FailureNotRegistered:
		return "Comments are not set up for this site"
	case FailureNotVerified:
		return "This site is awaiting verification"
	default:
		return "Comments failed to load"
	}
}

// NewInitError classifies an init failure.
func NewInitError(failure InitFailure, cause error) *InitError {
	return &InitError{Failure: failure, cause: cause}
}

// ErrRequestTimeout reports a correlated request that received no reply
// within the request timeout. Callers roll back optimistic UI and may retry
// at the user's initiative.
var ErrRequestTimeout = errors.New("widget: request timed out")

const (
	defaultInboxSize      = 32
	defaultRequestTimeout = 5 * time.Second
)

// Options configure a bridge instance for one mounted widget.
type Options struct {
	// WidgetBase is the widget's own origin. Every inbound message is
	// checked against it before any field is read.
	WidgetBase string
	// ParentOrigin is the host page origin, passed to the iframe so its
	// replies can be targeted.
	ParentOrigin string
	// APIBase is the backend the iframe issues mutating calls against.
	APIBase string
	Domain  string
	PageID  string

	InboxSize      int
	RequestTimeout time.Duration
}

// Outbound records a message posted toward the iframe, always with an
// explicit target origin, never a wildcard.
type Outbound struct {
	TargetOrigin string
	Envelope     Envelope
}

// Bridge is the host-page side of the widget protocol: it obtains tokens
// via /widget/init, addresses the hidden iframe, and runs the message state
// machine. All methods are safe for concurrent use.
type Bridge struct {
	opts   Options
	client InitClient

	mu            sync.Mutex
	state         State
	phase         Phase
	authenticated bool
	lastError     string
	originToken   string
	csrfToken     string
	siteID        int64
	pending       map[string]chan Envelope
	outbound      []Outbound

	inbox chan Envelope
}

// New creates an unmounted bridge in the Uninitialized state.
func New(opts Options, client InitClient) *Bridge {
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	return &Bridge{
		opts:    opts,
		client:  client,
		state:   StateUninitialized,
		pending: make(map[string]chan Envelope),
		inbox:   make(chan Envelope, opts.InboxSize),
	}
}

// Init drives Uninitialized -> Initializing -> Ready|Error. A failed init is
// terminal for this instance; the host page may mount a fresh one.
func (b *Bridge) Init(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateUninitialized {
		b.mu.Unlock()
		return fmt.Errorf("widget: init from state %d", b.state)
	}
	b.state = StateInitializing
	b.mu.Unlock()

	res, err := b.client.Init(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = StateError
		var initErr *InitError
		if errors.As(err, &initErr) {
			b.lastError = initErr.UserMessage()
		} else {
			b.lastError = NewInitError(FailureGeneric, err).UserMessage()
		}
		return err
	}

	b.originToken = res.OriginToken
	b.csrfToken = res.CSRFToken
	b.siteID = res.SiteID
	b.state = StateReady
	b.phase = PhaseLoading
	return nil
}

// FrameURL builds the hidden iframe's URL carrying both tokens. The iframe
// shares the widget's own origin, so it is the only component that issues
// mutating API calls.
func (b *Bridge) FrameURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := url.Values{}
	q.Set("domain", b.opts.Domain)
	q.Set("pageId", b.opts.PageID)
	q.Set("parentOrigin", b.opts.ParentOrigin)
	q.Set("apiBase", b.opts.APIBase)
	q.Set("csrfToken", b.csrfToken)
	q.Set("originToken", b.originToken)
	return b.opts.WidgetBase + "/widget/frame?" + q.Encode()
}

// Send posts an action toward the iframe.
func (b *Bridge) Send(action Action, payload json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.post(Envelope{Type: EnvelopeType, Action: action, Payload: payload})
}

// post appends an outbound record. Callers hold b.mu.
func (b *Bridge) post(env Envelope) {
	b.outbound = append(b.outbound, Outbound{TargetOrigin: b.opts.WidgetBase, Envelope: env})
}

// Receive is the mandatory gate for every inbound message: the sender
// origin must equal the widget base before any field is read. It reports
// whether the message was accepted. Unknown actions are ignored, not
// errors; duplicate error/authStateChanged messages are idempotent.
func (b *Bridge) Receive(senderOrigin string, env Envelope) bool {
	if senderOrigin != b.opts.WidgetBase {
		return false
	}
	if env.Type != EnvelopeType {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if env.MessageID != "" {
		if ch, ok := b.pending[env.MessageID]; ok {
			delete(b.pending, env.MessageID)
			ch <- env
			return true
		}
		// Reply for a request that already timed out.
		return false
	}

	switch env.Action {
	case ActionBridgeReady:
		if b.state == StateReady {
			b.phase = PhaseLoading
		}
	case ActionCommentsLoaded, ActionCommentPosted:
		if b.state == StateReady {
			b.phase = PhaseLoaded
		}
	case ActionAuthStateChanged:
		var p struct {
			Authenticated bool `json:"authenticated"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return false
		}
		b.authenticated = p.Authenticated
	case ActionLoginEmailSent:
		// Informational; the form shows its own confirmation.
	case ActionError:
		var p struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(env.Payload, &p)
		b.lastError = p.Message
		if b.state == StateReady && b.phase == PhaseSubmitting {
			b.phase = PhaseLoaded
		}
	default:
		return false
	}

	select {
	case b.inbox <- env:
	default:
		// Inbox full; state already advanced, the notification is dropped.
	}
	return true
}

// Request sends a correlated action (like/unlike) and waits for its reply.
// On timeout the pending listener is removed so it cannot leak, and the
// caller rolls back its optimistic UI.
func (b *Bridge) Request(ctx context.Context, action Action, payload json.RawMessage) (Envelope, error) {
	messageID := uuid.NewString()
	ch := make(chan Envelope, 1)

	b.mu.Lock()
	b.pending[messageID] = ch
	b.post(Envelope{Type: EnvelopeType, Action: action, MessageID: messageID, Payload: payload})
	b.mu.Unlock()

	timer := time.NewTimer(b.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		b.removePending(messageID)
		return Envelope{}, ErrRequestTimeout
	case <-ctx.Done():
		b.removePending(messageID)
		return Envelope{}, ctx.Err()
	}
}

func (b *Bridge) removePending(messageID string) {
	b.mu.Lock()
	delete(b.pending, messageID)
	b.mu.Unlock()
}

// BeginSubmit moves Loaded -> Submitting ahead of a postComment send.
func (b *Bridge) BeginSubmit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReady || b.phase != PhaseLoaded {
		return false
	}
	b.phase = PhaseSubmitting
	return true
}

// Inbox exposes accepted notifications for the rendering layer.
func (b *Bridge) Inbox() <-chan Envelope {
	return b.inbox
}

// Outbound returns a copy of every message posted so far.
func (b *Bridge) Outbound() []Outbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Outbound, len(b.outbound))
	copy(out, b.outbound)
	return out
}

// State returns the outer lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Phase returns the inner phase; meaningful only in StateReady.
func (b *Bridge) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Authenticated reports the last authStateChanged value.
func (b *Bridge) Authenticated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authenticated
}

// LastError returns the most recent user-facing error message.
func (b *Bridge) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}
