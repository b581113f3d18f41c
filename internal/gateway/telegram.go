package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxMessage = 4096

type TelegramGateway struct {
	Bot        *tgbotapi.BotAPI
	Dispatcher *Dispatcher
}

func NewTelegramGateway(token string, dispatcher *Dispatcher) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:        bot,
		Dispatcher: dispatcher,
	}, nil
}

func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			tg.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}

			log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

			chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
			tg.Dispatcher.Handle(ctx, chatID, update.Message.Text)
		}
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	text = truncate(text, telegramMaxMessage)

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "Markdown" // Enable markdown for better alerts
	if _, err := tg.Bot.Send(msg); err == nil {
		return nil
	}

	// Tool names and results often carry unbalanced markdown.
	msg.ParseMode = ""
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
