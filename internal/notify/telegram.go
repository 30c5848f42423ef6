// Package notify pushes operational digests to a Telegram chat. It is
// push-only: the bot never receives updates.
package notify

import (
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stockadvisor/internal/recommend"
)

type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// New builds a notifier, or returns nil when no token is configured.
// A nil *Notifier is safe to call; every method is a no-op on it.
func New(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Printf("notify: telegram bot %s ready", api.Self.UserName)
	return &Notifier{api: api, chatID: chatID}, nil
}

// RebuildDigest announces a completed session rebuild.
func (n *Notifier) RebuildDigest(sess *recommend.Session, took time.Duration) {
	if n == nil {
		return
	}
	text := fmt.Sprintf("Universe rebuilt: %d tickers, %d price rows, took %s",
		sess.Size(), sess.Prices().Len(), took.Round(time.Second))
	n.send(text)
}

// RebuildFailed announces a rebuild that kept the previous session.
func (n *Notifier) RebuildFailed(err error) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("Universe rebuild failed, keeping previous session: %v", err))
}

func (n *Notifier) send(text string) {
	if _, err := n.api.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		log.Printf("notify: telegram send: %v", err)
	}
}
