package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/joseph-ayodele/nfe-monitor/constants"
	"github.com/joseph-ayodele/nfe-monitor/internal/common"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes payloads keyed by content hash.
type KafkaDispatcher struct {
	topic  string
	writer messageWriter
	logger *slog.Logger
}

func NewKafkaDispatcher(brokers []string, topic string, logger *slog.Logger) *KafkaDispatcher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaDispatcher(topic, w, logger)
}

func newKafkaDispatcher(topic string, w messageWriter, logger *slog.Logger) *KafkaDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaDispatcher{topic: topic, writer: w, logger: logger}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, p Payload) (Receipt, error) {
	body, err := Encode(p)
	if err != nil {
		return Receipt{}, err
	}
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.ContentHash),
		Value: body,
		Headers: []kafka.Header{
			{Key: "request_id", Value: []byte(reqID)},
			{Key: "file_id", Value: []byte(p.FileID)},
			{Key: "mime_type", Value: []byte(p.MimeType)},
		},
	})
	if err != nil {
		d.logger.Error("dispatch.kafka.write_error", "req_id", reqID, "topic", d.topic, "file_id", p.FileID, "error", err)
		return Receipt{}, fmt.Errorf("write message to kafka: %w", err)
	}
	d.logger.Info("dispatch.kafka.published", "req_id", reqID, "topic", d.topic, "file_id", p.FileID, "bytes", len(body))
	return Receipt{Target: TargetKafka, Status: constants.DispatchStatusSent, RequestID: reqID}, nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
