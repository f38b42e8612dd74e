package telegram

import "gopkg.in/telebot.v3"

// Client sends plain messages to an operator chat.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
