package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/blackscorpionster/rubits/events/kafka"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/logging"
	"github.com/blackscorpionster/rubits/pkg/winfeed"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	ActionTicketPurchased = "ticket.purchased"
	ActionTicketValidated = "ticket.validated"

	sourceService = "rubits"
)

// Publisher queues an event for delivery
type Publisher interface {
	Publish(topic, key string, value interface{}) error
}

// PurchaseDetails represents purchase audit details for mapstructure decoding
type PurchaseDetails struct {
	PlayerID  string   `mapstructure:"playerId" json:"playerId"`
	DrawID    string   `mapstructure:"drawId" json:"drawId"`
	TicketIDs []string `mapstructure:"ticketIds" json:"ticketIds"`
	Count     int      `mapstructure:"count" json:"count"`
}

// ValidatedDetails represents validation audit details for mapstructure decoding
type ValidatedDetails struct {
	TicketID string `mapstructure:"ticketId" json:"ticketId"`
	DrawID   string `mapstructure:"drawId" json:"drawId"`
	Valid    bool   `mapstructure:"valid" json:"valid"`
	Won      bool   `mapstructure:"won" json:"won"`
	Prize    string `mapstructure:"prize" json:"prize,omitempty"`
	Revealed int    `mapstructure:"revealed" json:"revealed"`
	// EvaluatedValue is the tile value the evaluator found on the stored grid, 0 for none.
	EvaluatedValue int `mapstructure:"evaluatedValue" json:"evaluatedValue"`
}

// ValidationLog is what the ticket service reports after a validation
type ValidationLog struct {
	PlayerID   string
	TraceID    string
	Ticket     *game.Ticket
	Result     game.ValidationResult
	Evaluation game.Evaluation
	Revealed   int
	Timestamp  time.Time
}

// AuditProvider publishes ticket audit events to Kafka. With no producer it
// only logs, and wins go straight to the local feed when one is set.
type AuditProvider struct {
	publisher Publisher
	topic     string
	localFeed *winfeed.Feed
	logger    zerolog.Logger
}

// NewAuditProvider creates a new audit provider. publisher may be nil.
func NewAuditProvider(publisher Publisher, topic string, logger zerolog.Logger) *AuditProvider {
	if p, ok := publisher.(*kafka.Producer); ok && p == nil {
		publisher = nil
	}
	return &AuditProvider{
		publisher: publisher,
		topic:     topic,
		logger:    logging.WithComponent(logger, "audit_provider"),
	}
}

// SetLocalFeed routes wins to feed when Kafka is not configured
func (p *AuditProvider) SetLocalFeed(feed *winfeed.Feed) {
	p.localFeed = feed
}

// Enabled reports whether events reach Kafka
func (p *AuditProvider) Enabled() bool {
	return p.publisher != nil
}

// LogPurchase records tickets assigned to a player
func (p *AuditProvider) LogPurchase(ctx context.Context, playerID, drawID, traceID string, tickets []*game.Ticket) error {
	event := kafka.AuditEvent{
		Timestamp:     time.Now().UTC(),
		UserID:        playerID,
		SessionID:     uuid.NewString(),
		SourceService: sourceService,
		Action:        ActionTicketPurchased,
		Details: PurchaseDetails{
			PlayerID:  playerID,
			DrawID:    drawID,
			TicketIDs: lo.Map(tickets, func(t *game.Ticket, _ int) string { return t.ID }),
			Count:     len(tickets),
		},
		Result:  "success",
		TraceID: traceID,
	}
	return p.publish(drawID, event)
}

// LogValidation records a validation outcome
func (p *AuditProvider) LogValidation(ctx context.Context, log *ValidationLog) error {
	details := ValidatedDetails{
		TicketID:       log.Ticket.ID,
		DrawID:         log.Ticket.DrawID,
		Valid:          log.Result.Valid,
		Won:            log.Result.Won,
		Revealed:       log.Revealed,
		EvaluatedValue: lo.FromPtr(log.Evaluation.WinningValue),
	}
	if log.Result.Prize != nil {
		details.Prize = *log.Result.Prize
	}

	at := log.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result := "lost"
	switch {
	case !log.Result.Valid:
		result = "incomplete"
	case log.Result.Won:
		result = "won"
	}

	event := kafka.AuditEvent{
		Timestamp:     at,
		UserID:        log.PlayerID,
		SessionID:     log.Ticket.ID,
		SourceService: sourceService,
		Action:        ActionTicketValidated,
		Details:       details,
		Result:        result,
		TraceID:       log.TraceID,
	}

	if p.publisher == nil && p.localFeed != nil && details.Won {
		p.localFeed.Publish(winFromDetails(details, at))
	}
	return p.publish(log.Ticket.ID, event)
}

func (p *AuditProvider) publish(key string, event kafka.AuditEvent) error {
	if p.publisher == nil {
		p.logger.Debug().Str("action", event.Action).Msg("Kafka producer not configured, skipping audit event")
		return nil
	}
	if err := p.publisher.Publish(p.topic, key, event); err != nil {
		p.logger.Error().Err(err).Str("action", event.Action).Msg("Failed to queue audit event")
		return fmt.Errorf("failed to log %s: %w", event.Action, err)
	}
	return nil
}

// WinFeedHandler turns validated-win audit events into feed entries
func WinFeedHandler(feed *winfeed.Feed, logger zerolog.Logger) kafka.Handler {
	logger = logging.WithComponent(logger, "win_feed")
	return func(ctx context.Context, event kafka.AuditEvent) error {
		var details ValidatedDetails
		if err := mapstructure.Decode(event.Details, &details); err != nil {
			logger.Warn().Err(err).Msg("Failed to decode validation details")
			return fmt.Errorf("failed to decode validation details: %w", err)
		}
		if !details.Won {
			return nil
		}
		n := feed.Publish(winFromDetails(details, event.Timestamp))
		logger.Debug().Str("ticket_id", details.TicketID).Int("listeners", n).Msg("Win broadcast")
		return nil
	}
}

func winFromDetails(d ValidatedDetails, at time.Time) winfeed.Win {
	return winfeed.Win{TicketID: d.TicketID, DrawID: d.DrawID, Prize: d.Prize, At: at}
}
