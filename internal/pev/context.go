package pev

import "context"

type chatIDKey struct{}

// WithChatID attaches the conversation a run belongs to. Collaborators use
// it to route confirmations, notifications and history.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

// ChatID returns the conversation attached to ctx, or "".
func ChatID(ctx context.Context) string {
	id, _ := ctx.Value(chatIDKey{}).(string)
	return id
}
