package repository

import (
	"context"
	"fmt"
	"time"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/pkg/kafka"
)

// RunMessage is published once per completed run, keyed by run id.
type RunMessage struct {
	RunID   string            `json:"run_id"`
	Params  models.RunParams  `json:"params"`
	Summary models.RunSummary `json:"summary"`
}

// SignalEvent is one executed BUY or SELL, keyed by instrument so a
// consumer sees an instrument's signals in order.
type SignalEvent struct {
	RunID      string    `json:"run_id"`
	Instrument string    `json:"instrument"`
	Variant    string    `json:"variant"`
	DateTime   time.Time `json:"date_time"`
	Side       string    `json:"side"`
	Price      float64   `json:"price"`
	Pos        int       `json:"pos"`
}

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []kafka.Message) error
	Close() error
}

// KafkaSignalPublisher writes run summaries and signal events to Kafka.
type KafkaSignalPublisher struct {
	producer     batchPublisher
	runsTopic    string
	signalsTopic string
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

// NewKafkaSignalPublisher wraps producer. Either topic may be empty to skip it.
func NewKafkaSignalPublisher(producer *kafka.Producer, runsTopic, signalsTopic string) *KafkaSignalPublisher {
	kp := &KafkaSignalPublisher{runsTopic: runsTopic, signalsTopic: signalsTopic}
	if producer != nil {
		kp.producer = producer
	}
	return kp
}

// PublishRun sends the run summary, then every non-flat executed signal.
func (p *KafkaSignalPublisher) PublishRun(ctx context.Context, run *models.Run) error {
	if run == nil || p.producer == nil {
		return nil
	}
	id := run.Summary.RunID
	if p.runsTopic != "" {
		msg := kafka.Message{Key: []byte(id), Value: RunMessage{RunID: id, Params: run.Params, Summary: run.Summary}}
		if err := p.producer.PublishBatch(ctx, p.runsTopic, []kafka.Message{msg}); err != nil {
			return fmt.Errorf("publish run %s: %w", id, err)
		}
	}
	if p.signalsTopic == "" {
		return nil
	}
	events := SignalEvents(run)
	if len(events) == 0 {
		return nil
	}
	key := []byte(run.Params.Instrument)
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = kafka.Message{Key: key, Value: ev}
	}
	if err := p.producer.PublishBatch(ctx, p.signalsTopic, msgs); err != nil {
		return fmt.Errorf("publish %d signals of run %s: %w", len(msgs), id, err)
	}
	return nil
}

// SignalEvents lists the executed signals of run. Prices are the bar's open,
// the price a shifted signal trades at.
func SignalEvents(run *models.Run) []SignalEvent {
	var out []SignalEvent
	for _, pt := range run.Points {
		if pt.Sig == models.SignalFlat {
			continue
		}
		out = append(out, SignalEvent{
			RunID:      run.Summary.RunID,
			Instrument: run.Params.Instrument,
			Variant:    string(run.Params.Variant),
			DateTime:   pt.DateTime,
			Side:       pt.Sig.String(),
			Price:      pt.Open,
			Pos:        pt.Pos,
		})
	}
	return out
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
