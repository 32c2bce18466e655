package sink

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/mocks"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func account(balance int64, version uint64) *domain.Account {
	return &domain.Account{ID: "acct1", Balance: decimal.NewFromInt(balance), Version: version}
}

func TestConsoleSink_Prints_Kind_Label(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	sink := NewConsoleSink(&out, false)

	req.NoError(sink.Consume(context.Background(), event.Change{
		Kind: event.Updated, AccountID: "acct1", Value: account(90, 2), OldValue: account(100, 1), Member: "10.0.0.1:5701",
	}))
	req.NoError(sink.Consume(context.Background(), event.Change{
		Kind: event.Evicted, AccountID: "acct1", OldValue: account(90, 2),
	}))

	req.Equal(
		"Updated: EntryEvent {key=acct1, event=UPDATED, value=BudgetAccount [accountId=acct1, budget=90, version=2], "+
			"oldValue=BudgetAccount [accountId=acct1, budget=100, version=1], member=10.0.0.1:5701}\n"+
			"Evicted: EntryEvent {key=acct1, event=EVICTED, value=null, oldValue=BudgetAccount [accountId=acct1, budget=90, version=2], member=}\n",
		out.String())
}

func TestDedupSink_Forwards_Each_Version_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockChangeSink(ctrl)
	sink := NewDedupSink(next)

	// Given a stream with a replay, a late change, a removal and a re-creation
	stream := []event.Change{
		{Kind: event.Added, AccountID: "acct1", Value: account(100, 1)},
		{Kind: event.Updated, AccountID: "acct1", Value: account(90, 2)},
		{Kind: event.Updated, AccountID: "acct1", Value: account(90, 2)},
		{Kind: event.Updated, AccountID: "acct1", Value: account(80, 3)},
		{Kind: event.Updated, AccountID: "acct1", Value: account(90, 2)},
		{Kind: event.Removed, AccountID: "acct1", OldValue: account(80, 3)},
		{Kind: event.Removed, AccountID: "acct1", OldValue: account(80, 3)},
		{Kind: event.Added, AccountID: "acct1", Value: account(5, 1)},
	}
	var forwarded []string
	next.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c event.Change) error {
			forwarded = append(forwarded, fmt.Sprintf("%s@%d", c.Kind, c.Version()))
			return nil
		}).Times(5)

	for _, c := range stream {
		req.NoError(sink.Consume(context.Background(), c))
	}

	// Then duplicates and stale changes never reach the next sink
	req.Equal([]string{"ADDED@1", "UPDATED@2", "UPDATED@3", "REMOVED@3", "ADDED@1"}, forwarded)
	req.Equal(uint64(3), sink.Dropped())
}

func TestDedupSink_Forwards_Removal_Without_Previous_Value(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockChangeSink(ctrl)
	sink := NewDedupSink(next)

	// Given a subscription that does not carry previous values
	stream := []event.Change{
		{Kind: event.Added, AccountID: "acct1", Value: account(100, 1)},
		{Kind: event.Updated, AccountID: "acct1", Value: account(90, 2)},
		{Kind: event.Evicted, AccountID: "acct1"},
		{Kind: event.Evicted, AccountID: "acct1"},
	}
	var kinds []event.Kind
	next.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c event.Change) error {
			kinds = append(kinds, c.Kind)
			return nil
		}).Times(3)

	for _, c := range stream {
		req.NoError(sink.Consume(context.Background(), c))
	}

	// Then the first eviction goes through and only the repeat is dropped
	req.Equal([]event.Kind{event.Added, event.Updated, event.Evicted}, kinds)
	req.Equal(uint64(1), sink.Dropped())
}

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaSink_Publishes_Json_Keyed_By_Account(t *testing.T) {
	req := require.New(t)
	writer := &recordingWriter{}
	sink := NewKafkaSink(writer)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	err := sink.Consume(context.Background(), event.Change{
		Kind: event.Updated, AccountID: "acct1", Value: account(90, 2), OldValue: account(100, 1), At: at,
	})

	req.NoError(err)
	req.Len(writer.messages, 1)
	msg := writer.messages[0]
	req.Equal("acct1", string(msg.Key))
	req.Equal(at, msg.Time)
	var body map[string]any
	req.NoError(json.Unmarshal(msg.Value, &body))
	req.Equal("UPDATED", body["kind"])
	req.Equal(float64(2), body["version"])
	req.Equal("90", body["value"].(map[string]any)["balance"])
	req.Equal("100", body["old_value"].(map[string]any)["balance"])
}

func TestKafkaSink_Wraps_Write_Errors(t *testing.T) {
	req := require.New(t)
	cause := fmt.Errorf("broker down")
	sink := NewKafkaSink(&recordingWriter{err: cause})

	err := sink.Consume(context.Background(), event.Change{Kind: event.Added, AccountID: "acct1", Value: account(1, 1)})

	req.ErrorIs(err, cause)
}

func TestNewKafkaWriter_Defaults_Topic(t *testing.T) {
	req := require.New(t)
	writer := NewKafkaWriter([]string{"localhost:9092"}, "")
	req.Equal(DefaultChangeTopic, writer.Topic)
	req.IsType(&kafka.Hash{}, writer.Balancer)
}
