package sink

import (
	"budget-grid/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const DefaultChangeTopic = "budget-account-changes"

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes changes as JSON, keyed by account id so that the
// changes of one account land on one partition, in order.
// It must sit behind a DedupSink: the grid delivers at least once.
type KafkaSink struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultChangeTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

type accountJSON struct {
	AccountID string    `json:"account_id"`
	Balance   string    `json:"balance"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

type changeJSON struct {
	Kind      string       `json:"kind"`
	AccountID string       `json:"account_id"`
	Version   uint64       `json:"version"`
	Value     *accountJSON `json:"value,omitempty"`
	OldValue  *accountJSON `json:"old_value,omitempty"`
	Member    string       `json:"member,omitempty"`
	At        time.Time    `json:"at"`
}

func (s *KafkaSink) Consume(ctx context.Context, c event.Change) error {
	data, err := json.Marshal(toChangeJSON(c))
	if err != nil {
		return err
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(c.AccountID),
		Value: data,
		Time:  c.At,
	})
	if err != nil {
		return fmt.Errorf("publish change of %s: %w", c.AccountID, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func toChangeJSON(c event.Change) changeJSON {
	out := changeJSON{
		Kind:      string(c.Kind),
		AccountID: string(c.AccountID),
		Version:   c.Version(),
		Member:    c.Member,
		At:        c.At,
	}
	if c.Value != nil {
		out.Value = &accountJSON{
			AccountID: string(c.Value.ID),
			Balance:   c.Value.Balance.String(),
			Version:   c.Value.Version,
			UpdatedAt: c.Value.UpdatedAt,
		}
	}
	if c.OldValue != nil {
		out.OldValue = &accountJSON{
			AccountID: string(c.OldValue.ID),
			Balance:   c.OldValue.Balance.String(),
			Version:   c.OldValue.Version,
			UpdatedAt: c.OldValue.UpdatedAt,
		}
	}
	return out
}
