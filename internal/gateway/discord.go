package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// DiscordPrefix marks chat ids that belong to Discord channels.
const DiscordPrefix = "discord:"

const discordMaxMessage = 2000

type DiscordGateway struct {
	Session    *discordgo.Session
	Dispatcher *Dispatcher

	// closeSession defaults to Session.Close and runs at most once.
	closeSession func() error
	closeOnce    sync.Once
	closeErr     error
}

func NewDiscordGateway(token string, dispatcher *Dispatcher) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return &DiscordGateway{
		Session:      s,
		Dispatcher:   dispatcher,
		closeSession: s.Close,
	}, nil
}

func (dg *DiscordGateway) Start(ctx context.Context) error {
	remove := dg.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.Content == "" {
			return
		}
		log.Printf("[discord:%s] %s", m.Author.Username, m.Content)
		dg.Dispatcher.Handle(ctx, DiscordPrefix+m.ChannelID, m.Content)
	})
	defer remove()

	if err := dg.Session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	if u := dg.Session.State.User; u != nil {
		log.Printf("Connected to Discord as %s", u.Username)
	}

	<-ctx.Done()
	return dg.close()
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	channelID, ok := strings.CutPrefix(chatID, DiscordPrefix)
	if !ok || channelID == "" {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	text = truncate(text, discordMaxMessage)
	_, err := dg.Session.ChannelMessageSend(channelID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.close()
}

func (dg *DiscordGateway) close() error {
	dg.closeOnce.Do(func() {
		dg.closeErr = dg.closeSession()
	})
	return dg.closeErr
}
