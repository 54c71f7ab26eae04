package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"ramadan-bot/internal/domain"
)

type fakeBot struct {
	sent   []tgbotapi.MessageConfig
	err    error
	failAt int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil && len(f.sent) >= f.failAt {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestSendNumericAndUsername(t *testing.T) {
	bot := &fakeBot{}
	s := NewSender(bot, 0, zerolog.Nop())
	ctx := context.Background()

	if err := s.Send(ctx, "-1001234", domain.Message{Text: "<b>صحا فطوركم</b>", Mention: true}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := s.Send(ctx, "@ramadan_dz", domain.Message{Text: "countdown"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("ожидали 2 сообщения, получили %d", len(bot.sent))
	}
	first, second := bot.sent[0], bot.sent[1]
	if first.ChatID != -1001234 || first.ParseMode != tgbotapi.ModeHTML || first.DisableNotification {
		t.Fatalf("неожиданная конфигурация: %+v", first)
	}
	if second.ChannelUsername != "@ramadan_dz" || !second.DisableNotification {
		t.Fatalf("неожиданная конфигурация: %+v", second)
	}
}

func TestSendSplitsLongText(t *testing.T) {
	bot := &fakeBot{}
	s := NewSender(bot, 100, zerolog.Nop())
	text := strings.Repeat("a", messageLimit) + "\n\n" + "tail"
	if err := s.Send(context.Background(), "1", domain.Message{Text: text}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(bot.sent))
	}
}

func TestSendBadChatID(t *testing.T) {
	s := NewSender(&fakeBot{}, 0, zerolog.Nop())
	if err := s.Send(context.Background(), "general", domain.Message{Text: "x"}); !errors.Is(err, domain.ErrChannelNotFound) {
		t.Fatalf("ожидали ErrChannelNotFound, получили %v", err)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, domain.ErrChannelNotFound},
		{&tgbotapi.Error{Code: 403, Message: "Forbidden: bot is not a member of the channel chat"}, domain.ErrPermissionDenied},
		{&tgbotapi.Error{Code: 400, Message: "Bad Request: not enough rights to send text messages to the chat"}, domain.ErrPermissionDenied},
		{&tgbotapi.Error{Code: 429, Message: "Too Many Requests"}, domain.ErrNetwork},
		{errors.New("dial tcp: i/o timeout"), domain.ErrNetwork},
	}
	for _, tc := range cases {
		if got := mapError(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("%v: ожидали %v, получили %v", tc.err, tc.want, got)
		}
	}
}

func TestSendMapsAPIError(t *testing.T) {
	bot := &fakeBot{err: &tgbotapi.Error{Code: 403, Message: "Forbidden"}}
	s := NewSender(bot, 0, zerolog.Nop())
	if err := s.Send(context.Background(), "1", domain.Message{Text: "x"}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("ожидали ErrPermissionDenied, получили %v", err)
	}
}

func TestSendHonoursContext(t *testing.T) {
	s := NewSender(&fakeBot{}, 0.001, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	_ = s.Send(ctx, "1", domain.Message{Text: "first"})
	cancel()
	if err := s.Send(ctx, "1", domain.Message{Text: "second"}); err == nil {
		t.Fatalf("ожидали ошибку отменённого контекста")
	}
}

func TestSendReportsPartialDelivery(t *testing.T) {
	bot := &fakeBot{err: &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, failAt: 1}
	s := NewSender(bot, 0, zerolog.Nop())
	text := strings.Repeat("a", messageLimit) + "\n\n" + "tail"

	err := s.Send(context.Background(), "1", domain.Message{Text: text})
	if !errors.Is(err, domain.ErrPartialDelivery) || !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("ожидали ErrPartialDelivery и ErrNetwork, получили %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("первая часть должна уйти, ушло %d", len(bot.sent))
	}

	first := &fakeBot{err: &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}}
	err = NewSender(first, 0, zerolog.Nop()).Send(context.Background(), "1", domain.Message{Text: text})
	if errors.Is(err, domain.ErrPartialDelivery) {
		t.Fatalf("сбой первой части не является частичной доставкой: %v", err)
	}
}
