package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"scenario-quiz-service/internal/app"
	"scenario-quiz-service/internal/domain"
)

const (
	EventScoreUpdated  = "quiz.score.updated"
	EventQuizCompleted = "quiz.completed"
)

// Channel is the slice of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Event is the message body published for every score change.
type Event struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	OccurredAt time.Time          `json:"occurredAt"`
	Payload    domain.ScoreReport `json:"payload"`
}

// ScorePublisher forwards score reports to the next ScoreAPI and announces them on a topic exchange.
// Publishing is best effort; only the wrapped store's error is returned.
type ScorePublisher struct {
	next     app.ScoreAPI
	channel  Channel
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger
	now      func() time.Time
}

// Dial connects to the broker and declares the topic exchange.
func Dial(amqpURL, exchange string, next app.ScoreAPI, logger *slog.Logger) (*ScorePublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p := NewScorePublisher(ch, exchange, next, logger)
	p.conn = conn
	return p, nil
}

func NewScorePublisher(ch Channel, exchange string, next app.ScoreAPI, logger *slog.Logger) *ScorePublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScorePublisher{
		next:     next,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *ScorePublisher) UpdateQuizScore(ctx context.Context, report domain.ScoreReport) error {
	if p.next != nil {
		if err := p.next.UpdateQuizScore(ctx, report); err != nil {
			return err
		}
	}
	p.publish(ctx, EventScoreUpdated, report)
	if report.Status.Terminal() {
		p.publish(ctx, EventQuizCompleted, report)
	}
	return nil
}

func (p *ScorePublisher) publish(ctx context.Context, eventType string, report domain.ScoreReport) {
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    report,
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encode quiz event failed", "type", eventType, "error", err)
		return
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         eventType,
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("publish quiz event failed",
			"type", eventType, "user", report.Username, "quiz", report.QuizName, "error", err)
		return
	}
	p.logger.Debug("published quiz event", "type", eventType, "id", event.ID)
}

func (p *ScorePublisher) Close() error {
	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
