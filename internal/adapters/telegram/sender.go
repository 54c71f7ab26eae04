package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/metrics"
)

// BotAPI часть tgbotapi.BotAPI, нужная для отправки.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender доставляет сообщения в каналы через Bot API с ограничением частоты.
type Sender struct {
	bot     BotAPI
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewSender создаёт отправителя. rps <= 0 снимает ограничение.
func NewSender(bot BotAPI, rps float64, logger zerolog.Logger) *Sender {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Sender{bot: bot, limiter: rate.NewLimiter(limit, 1), log: logger}
}

// Send реализует domain.Sender. channelID это числовой chat id или @username канала.
// Если длинное сообщение оборвалось после первой части, ошибка оборачивает domain.ErrPartialDelivery.
func (s *Sender) Send(ctx context.Context, channelID string, msg domain.Message) error {
	parts := splitText(msg.Text, messageLimit)
	for i, part := range parts {
		if err := s.sendPart(ctx, channelID, part, msg.Mention); err != nil {
			if i > 0 {
				return fmt.Errorf("%w: part %d/%d: %w", domain.ErrPartialDelivery, i+1, len(parts), err)
			}
			return err
		}
	}
	return nil
}

func (s *Sender) sendPart(ctx context.Context, channelID, part string, mention bool) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	cfg, err := newMessage(channelID, part)
	if err != nil {
		return err
	}
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.DisableWebPagePreview = true
	cfg.DisableNotification = !mention

	start := time.Now()
	_, err = s.bot.Send(cfg)
	metrics.ObserveNetworkRequest("telegram", "send_message", "api.telegram.org", start, err)
	if err != nil {
		mapped := mapError(err)
		s.log.Error().Err(err).Str("channel", channelID).Msg("telegram: не удалось отправить сообщение")
		return mapped
	}
	return nil
}

func newMessage(channelID, text string) (tgbotapi.MessageConfig, error) {
	channelID = strings.TrimSpace(channelID)
	if strings.HasPrefix(channelID, "@") && len(channelID) > 1 {
		return tgbotapi.NewMessageToChannel(channelID, text), nil
	}
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("%w: bad chat id %q", domain.ErrChannelNotFound, channelID)
	}
	return tgbotapi.NewMessage(chatID, text), nil
}

// mapError переводит ошибки Bot API в доменные.
func mapError(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	desc := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Code == 403,
		strings.Contains(desc, "not enough rights"),
		strings.Contains(desc, "have no rights"):
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, apiErr.Message)
	case apiErr.Code == 400 && strings.Contains(desc, "chat not found"):
		return fmt.Errorf("%w: %s", domain.ErrChannelNotFound, apiErr.Message)
	case apiErr.Code == 429 || apiErr.Code >= 500:
		return fmt.Errorf("%w: %s", domain.ErrNetwork, apiErr.Message)
	}
	return fmt.Errorf("telegram: %d %s", apiErr.Code, apiErr.Message)
}
