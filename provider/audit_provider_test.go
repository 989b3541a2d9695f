package provider

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/blackscorpionster/rubits/events/kafka"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/pkg/winfeed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic string
	key   string
	event kafka.AuditEvent
}

type recordingPublisher struct {
	events []published
}

func (r *recordingPublisher) Publish(topic, key string, value interface{}) error {
	r.events = append(r.events, published{topic: topic, key: key, event: value.(kafka.AuditEvent)})
	return nil
}

func prize(s string) *string { return &s }

func TestAuditProvider_LogPurchase(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewAuditProvider(pub, "scratch.audit", zerolog.Nop())

	err := p.LogPurchase(context.Background(), "p-1", "d-1", "trace-1", []*game.Ticket{{ID: "t-1"}, {ID: "t-2"}})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	got := pub.events[0]
	assert.Equal(t, "scratch.audit", got.topic)
	assert.Equal(t, "d-1", got.key)
	assert.Equal(t, ActionTicketPurchased, got.event.Action)
	assert.Equal(t, "trace-1", got.event.TraceID)
	assert.Equal(t, PurchaseDetails{PlayerID: "p-1", DrawID: "d-1", TicketIDs: []string{"t-1", "t-2"}, Count: 2}, got.event.Details)
}

func TestAuditProvider_LogValidationResult(t *testing.T) {
	tests := []struct {
		name   string
		result game.ValidationResult
		want   string
	}{
		{"won", game.ValidationResult{Success: true, Valid: true, Won: true, Prize: prize("$5")}, "won"},
		{"lost", game.ValidationResult{Success: true, Valid: true}, "lost"},
		{"incomplete", game.ValidationResult{Success: true}, "incomplete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			p := NewAuditProvider(pub, "scratch.audit", zerolog.Nop())

			err := p.LogValidation(context.Background(), &ValidationLog{
				PlayerID: "p-1",
				Ticket:   &game.Ticket{ID: "t-1", DrawID: "d-1"},
				Result:   tt.result,
				Revealed: 9,
			})
			require.NoError(t, err)
			require.Len(t, pub.events, 1)
			assert.Equal(t, "t-1", pub.events[0].key)
			assert.Equal(t, tt.want, pub.events[0].event.Result)
		})
	}
}

func TestAuditProvider_DisabledWithNilProducer(t *testing.T) {
	var producer *kafka.Producer
	p := NewAuditProvider(producer, "scratch.audit", zerolog.Nop())
	assert.False(t, p.Enabled())

	feed := winfeed.New(1, 0)
	p.SetLocalFeed(feed)
	ch, cancel := feed.Listen(context.Background())
	defer cancel()

	err := p.LogValidation(context.Background(), &ValidationLog{
		Ticket: &game.Ticket{ID: "t-1", DrawID: "d-1"},
		Result: game.ValidationResult{Success: true, Valid: true, Won: true, Prize: prize("$5")},
	})
	require.NoError(t, err)

	win := <-ch
	assert.Equal(t, "t-1", win.TicketID)
	assert.Equal(t, "$5", win.Prize)
}

func TestWinFeedHandler_DecodesConsumedEvent(t *testing.T) {
	feed := winfeed.New(2, 0)
	ch, cancel := feed.Listen(context.Background())
	defer cancel()
	handler := WinFeedHandler(feed, zerolog.Nop())

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(kafka.AuditEvent{
		Timestamp: at,
		Action:    ActionTicketValidated,
		Details:   ValidatedDetails{TicketID: "t-9", DrawID: "d-1", Valid: true, Won: true, Prize: "$2.50", Revealed: 9, EvaluatedValue: 4},
	})
	require.NoError(t, err)

	// events arrive from the broker with details as a generic map
	var event kafka.AuditEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	require.NoError(t, handler(context.Background(), event))

	win := <-ch
	assert.Equal(t, winfeed.Win{TicketID: "t-9", DrawID: "d-1", Prize: "$2.50", At: at}, win)
}

func TestWinFeedHandler_IgnoresLosses(t *testing.T) {
	feed := winfeed.New(1, 0)
	ch, cancel := feed.Listen(context.Background())
	defer cancel()

	err := WinFeedHandler(feed, zerolog.Nop())(context.Background(), kafka.AuditEvent{
		Details: map[string]interface{}{"ticketId": "t-1", "won": false},
	})
	require.NoError(t, err)
	assert.Empty(t, ch)
}
