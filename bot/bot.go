// Package bot implements the presence-tracking and backlog-replay engine:
// it records when each participant was last seen, keeps the room
// transcript, and answers the help/log/uptime commands plus the
// conversational responses (insult, gossip, welcome, refusal).
//
// The engine is transport-agnostic: HandleEvent consumes one of the four
// inbound event kinds and returns the outgoing messages the transport
// must deliver. State lives entirely in the injected stores; the only
// per-session field is the bot's own online timestamp, used by uptime
// reporting and welcome-back gating.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/onnwee/kaabot/store"
	"github.com/onnwee/kaabot/telemetry"
	"github.com/onnwee/kaabot/vocab"
)

// Separators stripped from the front of command text after the nickname
// is removed, e.g. "kaabot: log" and "kaabot, log" both yield "log".
const leadingSeparators = "\t :,"

// Bot drives the dispatch state machine. A mutex serializes event
// handling because the transport layer is not guaranteed single-threaded.
type Bot struct {
	mu       sync.Mutex
	nick     string
	welcome  bool
	users    store.UserStore
	log      store.MessageLog
	vocab    vocab.Picker
	now      func() time.Time
	onlineAt time.Time
}

// Option configures a Bot.
type Option func(*Bot)

// WithClock replaces the wall clock; tests pass a fixed or stepping clock.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// WithWelcomeOnJoin toggles the "welcome back" broadcast when a known
// user rejoins.
func WithWelcomeOnJoin(enabled bool) Option {
	return func(b *Bot) { b.welcome = enabled }
}

// New builds a Bot around the given stores and vocabulary.
func New(nick string, users store.UserStore, log store.MessageLog, v vocab.Picker, opts ...Option) *Bot {
	b := &Bot{
		nick:    nick,
		welcome: true,
		users:   users,
		log:     log,
		vocab:   v,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Nick returns the bot's own nickname.
func (b *Bot) Nick() string { return b.nick }

// OnlineSince returns when the bot's current session started, or the zero
// time if it has not joined yet.
func (b *Bot) OnlineSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onlineAt
}

// HandleEvent processes one inbound event to completion and returns the
// responses to deliver. Errors only surface on store I/O failure, which
// has no degraded mode; callers should treat them as fatal.
func (b *Bot) HandleEvent(ctx context.Context, ev Event) ([]OutgoingMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := time.Now()
	defer func() { telemetry.ObserveDispatch(time.Since(start)) }()
	telemetry.CountEvent(ev.kind())

	switch m := ev.(type) {
	case RoomMessage:
		return b.handleRoomMessage(ctx, m)
	case DirectMessage:
		return b.handleDirectMessage(ctx, m)
	case JoinNotice:
		return b.handleJoin(ctx, m.Nick)
	case LeaveNotice:
		return b.handleLeave(ctx, m.Nick)
	default:
		return nil, nil
	}
}

// handleJoin updates the presence ledger. The bot's own join resets the
// session clock and greets the room instead; presence is never tracked
// on the bot itself.
func (b *Bot) handleJoin(ctx context.Context, nick string) ([]OutgoingMessage, error) {
	if nick == b.nick {
		b.onlineAt = b.now()
		return []OutgoingMessage{room(b.say("greetings"))}, nil
	}
	botConnected := !b.onlineAt.IsZero()
	prior, known, err := b.users.Find(ctx, nick)
	if err != nil {
		return nil, err
	}
	if err := b.users.RecordJoin(ctx, nick, b.now()); err != nil {
		return nil, err
	}
	b.updateUserGauge(ctx)
	// Welcome back only genuine returners: the bot must already be
	// connected and the user must have a recorded departure. Otherwise
	// skip silently.
	if b.welcome && botConnected && known && prior.OfflineAt != nil {
		date := prior.OfflineAt.Format(time.ANSIC)
		return []OutgoingMessage{room(b.say("welcome", "{nick}", nick, "{date}", date))}, nil
	}
	return nil, nil
}

func (b *Bot) handleLeave(ctx context.Context, nick string) ([]OutgoingMessage, error) {
	if nick == b.nick {
		return nil, nil
	}
	if err := b.users.RecordLeave(ctx, nick, b.now()); err != nil {
		return nil, err
	}
	b.updateUserGauge(ctx)
	return nil, nil
}

// handleRoomMessage classifies a room message and either runs a command,
// or logs it (optionally answering a mid-sentence mention with an
// insult). Command invocations and the bot's own utterances are never
// appended to the transcript.
func (b *Bot) handleRoomMessage(ctx context.Context, m RoomMessage) ([]OutgoingMessage, error) {
	if m.Author == b.nick {
		return nil, nil
	}
	text, invoked, mentioned := b.commandText(m.Body)
	if invoked {
		return b.runCommand(ctx, m.Author, text, false)
	}
	if err := b.log.Append(ctx, m.Author, m.Body, b.now()); err != nil {
		return nil, err
	}
	telemetry.CountMessageLogged()
	if mentioned {
		return []OutgoingMessage{room(b.say("insults", "{nick}", m.Author))}, nil
	}
	return nil, nil
}

// handleDirectMessage refuses senders the presence ledger has never seen
// in the bot's room; everyone else gets the trimmed body interpreted as
// command text in private mode.
func (b *Bot) handleDirectMessage(ctx context.Context, m DirectMessage) ([]OutgoingMessage, error) {
	_, known, err := b.users.Find(ctx, m.Sender)
	if err != nil {
		return nil, err
	}
	if !known {
		return []OutgoingMessage{direct(m.Sender, b.say("refusals", "{nick}", m.Sender))}, nil
	}
	return b.runCommand(ctx, m.Sender, strings.TrimSpace(m.Body), true)
}

// commandText splits the body on the bot's nickname, once. invoked is
// true when the nickname sits at the very start or very end of the body;
// text is then the remainder stripped of leading separators and trailing
// whitespace. mentioned is true when the nickname occurs anywhere else.
func (b *Bot) commandText(body string) (text string, invoked, mentioned bool) {
	before, after, found := strings.Cut(body, b.nick)
	if !found {
		return "", false, false
	}
	if before != "" && after != "" {
		return "", false, true
	}
	raw := strings.TrimLeft(before+after, leadingSeparators)
	raw = strings.TrimRightFunc(raw, unicode.IsSpace)
	return raw, true, false
}

// runCommand interprets command text, shared by the public (room) and
// private (direct message) paths. Dispatch is total: anything
// unrecognized earns an insult.
func (b *Bot) runCommand(ctx context.Context, requester, text string, private bool) ([]OutgoingMessage, error) {
	switch text {
	case "", "help", "aide":
		telemetry.CountCommand("help")
		return []OutgoingMessage{direct(requester, b.say("help", "{nick}", requester))}, nil
	case "log", "histo":
		telemetry.CountCommand("backlog")
		return b.backlog(ctx, requester, private)
	case "uptime":
		telemetry.CountCommand("uptime")
		up := b.now().Sub(b.onlineAt).Truncate(time.Second)
		body := b.say("uptime", "{uptime}", up.String())
		if private {
			return []OutgoingMessage{direct(requester, body)}, nil
		}
		return []OutgoingMessage{room(body)}, nil
	default:
		telemetry.CountCommand("insult")
		body := b.say("insults", "{nick}", requester)
		if private {
			return []OutgoingMessage{direct(requester, body)}, nil
		}
		return []OutgoingMessage{room(body)}, nil
	}
}

// backlog replays the messages posted strictly between the requester's
// last departure and their current arrival, one private message per
// entry. A user who never left gets the empty-log notice; that window is
// empty by policy, not an error. Public invocations broadcast a gossip
// notice to the room first.
func (b *Bot) backlog(ctx context.Context, requester string, private bool) ([]OutgoingMessage, error) {
	var out []OutgoingMessage
	if !private {
		out = append(out, room(b.say("gossips", "{nick}", requester)))
	}
	u, known, err := b.users.Find(ctx, requester)
	if err != nil {
		return nil, err
	}
	var entries []store.LogEntry
	if known && u.OfflineAt != nil && u.OnlineAt != nil {
		entries, err = b.log.Range(ctx, *u.OfflineAt, *u.OnlineAt)
		if err != nil {
			return nil, err
		}
	}
	if len(entries) == 0 {
		out = append(out, direct(requester, b.say("empty_log", "{nick}", requester)))
		return out, nil
	}
	for _, e := range entries {
		out = append(out, direct(requester, e.Author+": "+e.Body))
	}
	telemetry.AddBacklogLines(len(entries))
	return out, nil
}

// say picks a template for the category and substitutes placeholder
// pairs, e.g. say("welcome", "{nick}", "alice").
func (b *Bot) say(category string, pairs ...string) string {
	t := b.vocab.Pick(category)
	if len(pairs) > 0 {
		t = strings.NewReplacer(pairs...).Replace(t)
	}
	return t
}

func (b *Bot) updateUserGauge(ctx context.Context) {
	if n, err := b.users.Count(ctx); err == nil {
		telemetry.SetKnownUsers(n)
	}
}

func room(body string) OutgoingMessage {
	return OutgoingMessage{Body: body, Scope: ScopeRoom}
}

func direct(to, body string) OutgoingMessage {
	return OutgoingMessage{To: to, Body: body, Scope: ScopeDirect}
}
