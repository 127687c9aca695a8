package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domaguardian/domaguardian/internal/config"
	"github.com/domaguardian/domaguardian/internal/storage"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, "domaguardian.events", testLogger())
	at := time.Unix(1_700_000_000, 0).UTC()

	events := []storage.EventRecord{
		{Seq: 1, TxSeq: 1, Index: 0, Contract: "ledger", Name: "CreditUsed", Data: json.RawMessage(`{"user":"0x01"}`), Time: at},
		{Seq: 2, TxSeq: 1, Index: 1, Contract: "registry", Name: "DomainTokenized", Data: json.RawMessage(`{"name":"a.doma"}`), Time: at},
	}
	require.NoError(t, sink.Publish(context.Background(), events))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "ledger", string(w.msgs[0].Key))
	assert.Equal(t, "registry", string(w.msgs[1].Key))
	assert.Equal(t, []kafka.Header{{Key: "event", Value: []byte("DomainTokenized")}}, w.msgs[1].Headers)
	assert.Equal(t, at, w.msgs[0].Time)

	var got storage.EventRecord
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &got))
	assert.Equal(t, events[1].Seq, got.Seq)
	assert.Equal(t, events[1].Name, got.Name)
	assert.JSONEq(t, `{"name":"a.doma"}`, string(got.Data))
}

func TestKafkaSink_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	sink := newKafkaSink(w, "domaguardian.events", testLogger())

	err := sink.Publish(context.Background(), []storage.EventRecord{{Seq: 1, Contract: "ledger", Name: "Deposited", Data: json.RawMessage(`{}`)}})
	assert.ErrorIs(t, err, w.err)
	assert.Contains(t, err.Error(), "domaguardian.events")
}

func TestKafkaSink_Close(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, "t", testLogger())
	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
	assert.Equal(t, "kafka", sink.Name())
}

func TestNewKafkaSink(t *testing.T) {
	sink := NewKafkaSink(config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "domaguardian.events"}, testLogger())
	w, ok := sink.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "domaguardian.events", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}
