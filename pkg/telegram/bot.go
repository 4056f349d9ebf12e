package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ds124wfegd/gymbooker/internal/entity"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Pusher delivers push messages as Telegram chat messages. The device token
// is the chat id, or an @channel username.
type Pusher struct {
	bot *tgbotapi.BotAPI
}

// NewPusher authenticates the bot (getMe) against endpoint, a format string
// taking the token and the method name.
func NewPusher(token, endpoint string, client *http.Client) (*Pusher, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	logrus.Infof("Telegram bot authorized as @%s", bot.Self.UserName)
	return &Pusher{bot: bot}, nil
}

func (p *Pusher) SendAll(ctx context.Context, messages []entity.PushMessage) (entity.BatchResult, error) {
	var res entity.BatchResult
	for _, m := range messages {
		if err := ctx.Err(); err != nil {
			res.Failed += len(messages) - res.Sent - res.Failed
			return res, err
		}
		if err := p.send(m); err != nil {
			logrus.WithField("token", m.Token).Warnf("Telegram delivery failed: %v", err)
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res, nil
}

func (p *Pusher) send(m entity.PushMessage) error {
	text := m.Title + "\n" + m.Body

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(m.Token, "@") {
		msg = tgbotapi.NewMessageToChannel(m.Token, text)
	} else {
		chatID, err := strconv.ParseInt(m.Token, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q", m.Token)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}

	_, err := p.bot.Send(msg)
	return err
}
