package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v3"
	"github.com/google/uuid"

	"github.com/onnwee/kaabot/bot"
	"github.com/onnwee/kaabot/config"
	"github.com/onnwee/kaabot/telemetry"
)

// sender delivers outgoing messages. The IRC client satisfies it in
// production; tests substitute a recorder.
type sender interface {
	Say(text string)
	Whisper(user, text string)
}

type ircSender struct {
	client  *twitch.Client
	channel string
}

func (s *ircSender) Say(text string)           { s.client.Say(s.channel, text) }
func (s *ircSender) Whisper(user, text string) { s.client.Whisper(user, text) }

// Run connects the bot to the configured channel and pumps IRC callbacks
// through the dispatcher until the context is cancelled or a store
// failure occurs. Store failures have no degraded mode, so they tear the
// connection down and surface as the returned error.
func Run(ctx context.Context, cfg *config.Config, b *bot.Bot) error {
	if err := cfg.ValidateChatReady(); err != nil {
		return err
	}

	client := twitch.NewClient(cfg.BotNick, cfg.OAuthToken)
	// Membership capability is required to receive JOIN/PART notices.
	client.Capabilities = []string{twitch.TagsCapability, twitch.CommandsCapability, twitch.MembershipCapability}
	out := &ircSender{client: client, channel: cfg.Channel}

	var fatalOnce sync.Once
	var fatalErr error
	fail := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			client.Disconnect()
		})
	}

	handle := func(ev bot.Event) {
		if err := dispatch(ctx, b, out, ev); err != nil {
			slog.Error("event dispatch failed; shutting down chat", slog.Any("err", err))
			fail(err)
		}
	}

	client.OnConnect(func() {
		slog.Info("connected to chat", slog.String("channel", cfg.Channel), slog.String("nick", cfg.BotNick))
		// Our own join resets the session clock and greets the room.
		handle(bot.JoinNotice{Nick: b.Nick()})
	})
	client.OnUserJoinMessage(func(m twitch.UserJoinMessage) {
		if strings.EqualFold(m.User, cfg.BotNick) {
			return
		}
		handle(bot.JoinNotice{Nick: m.User})
	})
	client.OnUserPartMessage(func(m twitch.UserPartMessage) {
		if strings.EqualFold(m.User, cfg.BotNick) {
			return
		}
		handle(bot.LeaveNotice{Nick: m.User})
	})
	client.OnPrivateMessage(func(m twitch.PrivateMessage) {
		handle(bot.RoomMessage{Author: m.User.Name, Body: m.Message})
	})
	client.OnWhisperMessage(func(m twitch.WhisperMessage) {
		handle(bot.DirectMessage{Sender: m.User.Name, Body: m.Message})
	})

	go func() {
		<-ctx.Done()
		client.Disconnect()
	}()

	client.Join(cfg.Channel)
	err := client.Connect()
	if fatalErr != nil {
		return fatalErr
	}
	if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
		return nil
	}
	return err
}

// dispatch hands one inbound event to the bot under a fresh correlation
// id and span, then delivers the responses.
func dispatch(ctx context.Context, b *bot.Bot, s sender, ev bot.Event) error {
	ctx = telemetry.WithCorrelation(ctx, uuid.New().String())
	ctx, span := telemetry.StartSpan(ctx, "chat", "chat.event")
	defer span.End()

	out, err := b.HandleEvent(ctx, ev)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	deliver(s, out)
	return nil
}

func deliver(s sender, out []bot.OutgoingMessage) {
	for _, m := range out {
		switch m.Scope {
		case bot.ScopeDirect:
			s.Whisper(m.To, m.Body)
		default:
			s.Say(m.Body)
		}
	}
}
