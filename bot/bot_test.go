package bot

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/onnwee/kaabot/store"
	"github.com/onnwee/kaabot/vocab"
)

// testVocab returns a deterministic vocabulary whose templates identify
// their category, so assertions can tell which response was picked.
func testVocab() vocab.Picker {
	return vocab.NewWithSelector(map[string][]string{
		"help":      {"help:{nick}"},
		"empty_log": {"empty:{nick}"},
		"gossips":   {"gossip:{nick}"},
		"greetings": {"greetings"},
		"insults":   {"insult:{nick}"},
		"uptime":    {"uptime:{uptime}"},
		"welcome":   {"welcome:{nick}:{date}"},
		"refusals":  {"refusal:{nick}"},
	}, func(int) int { return 0 })
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	bot   *Bot
	users *store.MemoryUsers
	log   *store.MemoryLog
	clock *fakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		users: store.NewMemoryUsers(),
		log:   store.NewMemoryLog(),
		clock: &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.bot = New("kaabot", f.users, f.log, testVocab(), opts...)
	return f
}

func (f *fixture) handle(t *testing.T, ev Event) []OutgoingMessage {
	t.Helper()
	out, err := f.bot.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("HandleEvent(%#v): %v", ev, err)
	}
	return out
}

func (f *fixture) advance(d time.Duration) { f.clock.now = f.clock.now.Add(d) }

func TestBotSelfJoinGreetsAndResetsSession(t *testing.T) {
	f := newFixture(t)
	out := f.handle(t, JoinNotice{Nick: "kaabot"})
	want := []OutgoingMessage{{Body: "greetings", Scope: ScopeRoom}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("self join output mismatch (-want +got):\n%s", diff)
	}
	if got := f.bot.OnlineSince(); !got.Equal(f.clock.now) {
		t.Errorf("OnlineSince = %v, want %v", got, f.clock.now)
	}
	// The bot never tracks presence on itself.
	if _, known, _ := f.users.Find(context.Background(), "kaabot"); known {
		t.Error("bot's own nick should not appear in the presence ledger")
	}
}

func TestBacklogReplaysMissedWindow(t *testing.T) {
	// Scenario: alice leaves at T1, bob posts three messages, alice
	// rejoins at T5 and asks for the log.
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})
	f.handle(t, JoinNotice{Nick: "alice"})

	f.advance(time.Minute)
	f.handle(t, LeaveNotice{Nick: "alice"})

	bodies := []string{"first", "second", "third"}
	for _, body := range bodies {
		f.advance(time.Minute)
		f.handle(t, RoomMessage{Author: "bob", Body: body})
	}

	f.advance(time.Minute)
	rejoin := f.handle(t, JoinNotice{Nick: "alice"})
	if len(rejoin) != 1 || rejoin[0].Scope != ScopeRoom {
		t.Fatalf("expected a single welcome-back broadcast, got %#v", rejoin)
	}

	out := f.handle(t, RoomMessage{Author: "alice", Body: "kaabot log"})
	want := []OutgoingMessage{
		{Body: "gossip:alice", Scope: ScopeRoom},
		{To: "alice", Body: "bob: first", Scope: ScopeDirect},
		{To: "alice", Body: "bob: second", Scope: ScopeDirect},
		{To: "alice", Body: "bob: third", Scope: ScopeDirect},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("backlog output mismatch (-want +got):\n%s", diff)
	}
}

func TestBacklogForUserWhoNeverLeft(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})
	f.handle(t, JoinNotice{Nick: "carol"})
	f.advance(time.Minute)
	f.handle(t, RoomMessage{Author: "bob", Body: "chatter"})

	out := f.handle(t, RoomMessage{Author: "carol", Body: "kaabot log"})
	want := []OutgoingMessage{
		{Body: "gossip:carol", Scope: ScopeRoom},
		{To: "carol", Body: "empty:carol", Scope: ScopeDirect},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("never-left backlog mismatch (-want +got):\n%s", diff)
	}
}

func TestBacklogExcludesBoundaryTimestamps(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})
	f.handle(t, JoinNotice{Nick: "alice"})
	f.advance(time.Minute)
	f.handle(t, LeaveNotice{Nick: "alice"})

	// Exactly at the departure instant: excluded by the strict bound.
	f.handle(t, RoomMessage{Author: "bob", Body: "at departure"})
	f.advance(time.Minute)
	f.handle(t, RoomMessage{Author: "bob", Body: "inside"})
	f.advance(time.Minute)
	f.handle(t, JoinNotice{Nick: "alice"})
	// Exactly at the arrival instant: excluded too.
	f.handle(t, RoomMessage{Author: "bob", Body: "at arrival"})

	out := f.handle(t, RoomMessage{Author: "alice", Body: "kaabot log"})
	want := []OutgoingMessage{
		{Body: "gossip:alice", Scope: ScopeRoom},
		{To: "alice", Body: "bob: inside", Scope: ScopeDirect},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("boundary handling mismatch (-want +got):\n%s", diff)
	}
}

func TestBareNicknameYieldsPrivateHelp(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})

	out := f.handle(t, RoomMessage{Author: "dave", Body: "kaabot"})
	want := []OutgoingMessage{{To: "dave", Body: "help:dave", Scope: ScopeDirect}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("bare-nick output mismatch (-want +got):\n%s", diff)
	}
	if n, _ := f.log.Count(context.Background()); n != 0 {
		t.Errorf("command invocation was logged; transcript length = %d", n)
	}
}

func TestMidSentenceMentionInsultsAndLogs(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})

	out := f.handle(t, RoomMessage{Author: "eve", Body: "hey kaabot wake up"})
	want := []OutgoingMessage{{Body: "insult:eve", Scope: ScopeRoom}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mid-mention output mismatch (-want +got):\n%s", diff)
	}
	if n, _ := f.log.Count(context.Background()); n != 1 {
		t.Errorf("mid-mention message should be logged; transcript length = %d", n)
	}
}

func TestDirectMessageFromStrangerIsRefused(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})

	out := f.handle(t, DirectMessage{Sender: "mallory", Body: "log"})
	want := []OutgoingMessage{{To: "mallory", Body: "refusal:mallory", Scope: ScopeDirect}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("stranger DM mismatch (-want +got):\n%s", diff)
	}
	if n, _ := f.users.Count(context.Background()); n != 0 {
		t.Errorf("stranger DM mutated the presence ledger; users = %d", n)
	}
	if n, _ := f.log.Count(context.Background()); n != 0 {
		t.Errorf("stranger DM mutated the transcript; entries = %d", n)
	}
}

func TestDirectMessageBacklogSkipsGossip(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})
	f.handle(t, JoinNotice{Nick: "alice"})
	f.advance(time.Minute)
	f.handle(t, LeaveNotice{Nick: "alice"})
	f.advance(time.Minute)
	f.handle(t, RoomMessage{Author: "bob", Body: "psst"})
	f.advance(time.Minute)
	f.handle(t, JoinNotice{Nick: "alice"})

	out := f.handle(t, DirectMessage{Sender: "alice", Body: "  log  "})
	want := []OutgoingMessage{{To: "alice", Body: "bob: psst", Scope: ScopeDirect}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("private backlog mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandRouting(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []OutgoingMessage
	}{
		{"no mention", "a quiet afternoon", nil},
		{"bare nick", "kaabot", []OutgoingMessage{{To: "bob", Body: "help:bob", Scope: ScopeDirect}}},
		{"nick with colon", "kaabot: help", []OutgoingMessage{{To: "bob", Body: "help:bob", Scope: ScopeDirect}}},
		{"french help", "kaabot, aide", []OutgoingMessage{{To: "bob", Body: "help:bob", Scope: ScopeDirect}}},
		{"uptime public", "kaabot uptime", []OutgoingMessage{{Body: "uptime:1m0s", Scope: ScopeRoom}}},
		{"histo alias", "kaabot histo", []OutgoingMessage{
			{Body: "gossip:bob", Scope: ScopeRoom},
			{To: "bob", Body: "empty:bob", Scope: ScopeDirect},
		}},
		{"nick at end", "log kaabot", []OutgoingMessage{
			{Body: "gossip:bob", Scope: ScopeRoom},
			{To: "bob", Body: "empty:bob", Scope: ScopeDirect},
		}},
		{"unknown command", "kaabot frobnicate", []OutgoingMessage{{Body: "insult:bob", Scope: ScopeRoom}}},
		{"mid mention", "so kaabot is broken", []OutgoingMessage{{Body: "insult:bob", Scope: ScopeRoom}}},
		{"case sensitive command", "kaabot LOG", []OutgoingMessage{{Body: "insult:bob", Scope: ScopeRoom}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.handle(t, JoinNotice{Nick: "kaabot"})
			f.advance(time.Minute)
			out := f.handle(t, RoomMessage{Author: "bob", Body: tc.body})
			if diff := cmp.Diff(tc.want, out); diff != "" {
				t.Errorf("routing mismatch for %q (-want +got):\n%s", tc.body, diff)
			}
		})
	}
}

func TestOwnMessagesIgnoredEntirely(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})

	out := f.handle(t, RoomMessage{Author: "kaabot", Body: "kaabot log"})
	if len(out) != 0 {
		t.Errorf("bot's own message produced output: %#v", out)
	}
	if n, _ := f.log.Count(context.Background()); n != 0 {
		t.Errorf("bot's own message was logged; transcript length = %d", n)
	}
}

func TestRepeatedJoinKeepsOfflineTimestamp(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})
	f.handle(t, JoinNotice{Nick: "alice"})
	f.advance(time.Minute)
	f.handle(t, LeaveNotice{Nick: "alice"})
	left := f.clock.now

	f.advance(time.Minute)
	f.handle(t, JoinNotice{Nick: "alice"})
	first := f.clock.now
	f.advance(time.Minute)
	f.handle(t, JoinNotice{Nick: "alice"})

	u, known, err := f.users.Find(context.Background(), "alice")
	if err != nil || !known {
		t.Fatalf("Find(alice) = %v, %v, %v", u, known, err)
	}
	if u.OnlineAt == nil || !u.OnlineAt.Equal(first.Add(time.Minute)) {
		t.Errorf("OnlineAt = %v, want %v", u.OnlineAt, first.Add(time.Minute))
	}
	if u.OfflineAt == nil || !u.OfflineAt.Equal(left) {
		t.Errorf("OfflineAt = %v, want %v (must survive rejoins)", u.OfflineAt, left)
	}
}

func TestWelcomeBackGating(t *testing.T) {
	t.Run("skipped for first-time joiners", func(t *testing.T) {
		f := newFixture(t)
		f.handle(t, JoinNotice{Nick: "kaabot"})
		out := f.handle(t, JoinNotice{Nick: "fresh"})
		if len(out) != 0 {
			t.Errorf("first join produced output: %#v", out)
		}
	})

	t.Run("skipped while bot not yet connected", func(t *testing.T) {
		f := newFixture(t)
		f.handle(t, LeaveNotice{Nick: "alice"})
		out := f.handle(t, JoinNotice{Nick: "alice"})
		if len(out) != 0 {
			t.Errorf("join before bot session produced output: %#v", out)
		}
	})

	t.Run("skipped when user never left", func(t *testing.T) {
		f := newFixture(t)
		f.handle(t, JoinNotice{Nick: "kaabot"})
		f.handle(t, JoinNotice{Nick: "alice"})
		f.advance(time.Minute)
		out := f.handle(t, JoinNotice{Nick: "alice"})
		if len(out) != 0 {
			t.Errorf("rejoin without departure produced output: %#v", out)
		}
	})

	t.Run("disabled by toggle", func(t *testing.T) {
		f := newFixture(t, WithWelcomeOnJoin(false))
		f.handle(t, JoinNotice{Nick: "kaabot"})
		f.handle(t, JoinNotice{Nick: "alice"})
		f.advance(time.Minute)
		f.handle(t, LeaveNotice{Nick: "alice"})
		f.advance(time.Minute)
		out := f.handle(t, JoinNotice{Nick: "alice"})
		if len(out) != 0 {
			t.Errorf("welcome produced with toggle off: %#v", out)
		}
	})

	t.Run("formats the prior departure", func(t *testing.T) {
		f := newFixture(t)
		f.handle(t, JoinNotice{Nick: "kaabot"})
		f.handle(t, JoinNotice{Nick: "alice"})
		f.advance(time.Minute)
		f.handle(t, LeaveNotice{Nick: "alice"})
		left := f.clock.now
		f.advance(time.Hour)
		out := f.handle(t, JoinNotice{Nick: "alice"})
		want := []OutgoingMessage{{Body: "welcome:alice:" + left.Format(time.ANSIC), Scope: ScopeRoom}}
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("welcome mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestUptimePrivateWhenAskedPrivately(t *testing.T) {
	f := newFixture(t)
	f.handle(t, JoinNotice{Nick: "kaabot"})
	f.handle(t, JoinNotice{Nick: "alice"})
	f.advance(90 * time.Second)

	out := f.handle(t, DirectMessage{Sender: "alice", Body: "uptime"})
	want := []OutgoingMessage{{To: "alice", Body: "uptime:1m30s", Scope: ScopeDirect}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("private uptime mismatch (-want +got):\n%s", diff)
	}
}
