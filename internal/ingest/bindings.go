package ingest

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/chat"
	"github.com/chatops-kit/triage-service/internal/config"
	"github.com/chatops-kit/triage-service/internal/service"
)

// TriageBindings connects platform events to the ticket lifecycle. The
// channel filter and thread checks live here, before any entity is created;
// the services stay ignorant of which channel is being triaged.
type TriageBindings struct {
	tickets *service.TicketService
	cfg     config.TriageConfig
	logger  *zap.Logger
}

// NewTriageBindings creates the bindings.
func NewTriageBindings(tickets *service.TicketService, cfg config.TriageConfig, logger *zap.Logger) *TriageBindings {
	return &TriageBindings{tickets: tickets, cfg: cfg, logger: logger}
}

// Register wires the bindings into the registry. Emoji-specific reaction
// patterns register first so the catch-all reaction drop never shadows them.
func (b *TriageBindings) Register(registry *Registry) {
	registry.Register("^reaction\\.added:"+regexp.QuoteMeta(b.cfg.TriggerEmoji)+"$", b.handleTriggerAdded)
	registry.Register("^reaction\\.added:"+regexp.QuoteMeta(b.cfg.ResolvedEmoji)+"$", b.handleResolvedAdded)
	registry.Register("^reaction\\.removed:"+regexp.QuoteMeta(b.cfg.ResolvedEmoji)+"$", b.handleResolvedRemoved)
	registry.Register("^message\\.posted$", b.handleMessage)
}

func (b *TriageBindings) handleMessage(ctx context.Context, env *Envelope) error {
	ev := env.Event
	// Edits, joins and bot chatter never become queries.
	if ev.Subtype != "" || ev.BotID != "" || ev.User == "" {
		return nil
	}
	if !b.inTriageChannel(ev.Channel) {
		return nil
	}
	msg := chat.Message{
		ChannelID: ev.Channel,
		TS:        ev.TS,
		ThreadTS:  ev.ThreadTS,
		UserID:    ev.User,
		Text:      ev.Text,
	}
	return b.tickets.HandleMessage(ctx, msg, env.Timestamp())
}

func (b *TriageBindings) handleTriggerAdded(ctx context.Context, env *Envelope) error {
	ev := env.Event
	if ev.Item.Type != "message" || !b.inTriageChannel(ev.Item.Channel) {
		return nil
	}
	_, created, err := b.tickets.OpenTicket(ctx, ev.Item.Channel, ev.Item.TS, ev.User, env.Timestamp())
	if err != nil {
		return err
	}
	if created {
		b.logger.Info("ticket opened from reaction",
			zap.String("channel_id", ev.Item.Channel),
			zap.String("message_ts", ev.Item.TS),
			zap.String("reactor_id", ev.User))
	}
	return nil
}

func (b *TriageBindings) handleResolvedAdded(ctx context.Context, env *Envelope) error {
	ev := env.Event
	if ev.Item.Type != "message" || !b.inTriageChannel(ev.Item.Channel) {
		return nil
	}
	_, _, err := b.tickets.CloseTicket(ctx, ev.Item.Channel, ev.Item.TS, ev.User, env.Timestamp())
	return err
}

func (b *TriageBindings) handleResolvedRemoved(ctx context.Context, env *Envelope) error {
	ev := env.Event
	if ev.Item.Type != "message" || !b.inTriageChannel(ev.Item.Channel) {
		return nil
	}
	_, _, err := b.tickets.ReopenTicket(ctx, ev.Item.Channel, ev.Item.TS, ev.User, env.Timestamp())
	return err
}

// inTriageChannel applies the channel filter; an empty filter accepts all.
func (b *TriageBindings) inTriageChannel(channelID string) bool {
	return b.cfg.ChannelID == "" || b.cfg.ChannelID == channelID
}
