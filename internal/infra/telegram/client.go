// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the delivery.Client interface using the
// gopkg.in/telebot.v3 library. Messaging handles are Telegram chat IDs.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// Send delivers a text message to the chat identified by handle.
func (tba *TelebotAdapter) Send(ctx context.Context, handle string, text string) error {
	chatID, err := strconv.ParseInt(handle, 10, 64)
	if err != nil {
		return fmt.Errorf("messaging handle %q is not a Telegram chat ID: %w", handle, err)
	}
	recipient := &telebot.User{ID: chatID}
	_, err = tba.bot.Send(recipient, text, &telebot.SendOptions{})
	return err
}
