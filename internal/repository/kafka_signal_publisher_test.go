package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"PVResonance/internal/domain/models"
	"PVResonance/pkg/kafka"
)

type recordingProducer struct {
	topics  []string
	batches [][]kafka.Message
	err     error
}

func (r *recordingProducer) PublishBatch(_ context.Context, topic string, msgs []kafka.Message) error {
	if r.err != nil {
		return r.err
	}
	r.topics = append(r.topics, topic)
	r.batches = append(r.batches, msgs)
	return nil
}

func (r *recordingProducer) Close() error { return nil }

func sampleRun() *models.Run {
	t0 := time.Date(2021, 3, 1, 15, 0, 0, 0, time.UTC)
	return &models.Run{
		Params:  models.RunParams{Instrument: "IC", Variant: models.VariantV1},
		Summary: models.RunSummary{RunID: "run-1", Trades: 1},
		Points: []models.SignalPoint{
			{DateTime: t0, Open: 10},
			{DateTime: t0.AddDate(0, 0, 1), Open: 11, Sig: models.SignalBuy, Pos: 1},
			{DateTime: t0.AddDate(0, 0, 2), Open: 12, Pos: 1},
			{DateTime: t0.AddDate(0, 0, 3), Open: 13, Sig: models.SignalSell},
		},
	}
}

func TestKafkaSignalPublisherPublishesSummaryAndSignals(t *testing.T) {
	rp := &recordingProducer{}
	p := &KafkaSignalPublisher{producer: rp, runsTopic: "pvr.runs", signalsTopic: "pvr.signals"}

	if err := p.PublishRun(context.Background(), sampleRun()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(rp.topics) != 2 || rp.topics[0] != "pvr.runs" || rp.topics[1] != "pvr.signals" {
		t.Fatalf("topics = %v", rp.topics)
	}
	if string(rp.batches[0][0].Key) != "run-1" {
		t.Fatalf("run message key = %q", rp.batches[0][0].Key)
	}
	sigs := rp.batches[1]
	if len(sigs) != 2 {
		t.Fatalf("signal events = %d, want 2", len(sigs))
	}
	first := sigs[0].Value.(SignalEvent)
	if string(sigs[0].Key) != "IC" || first.Side != "BUY" || first.Price != 11 || first.Pos != 1 {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if last := sigs[1].Value.(SignalEvent); last.Side != "SELL" || last.Pos != 0 {
		t.Fatalf("unexpected last event: %+v", last)
	}
}

func TestKafkaSignalPublisherSkipsEmptyTopics(t *testing.T) {
	rp := &recordingProducer{}
	p := &KafkaSignalPublisher{producer: rp, runsTopic: "pvr.runs"}
	if err := p.PublishRun(context.Background(), sampleRun()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(rp.topics) != 1 {
		t.Fatalf("topics = %v", rp.topics)
	}

	rp.err = errors.New("down")
	if err := p.PublishRun(context.Background(), sampleRun()); !errors.Is(err, rp.err) {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestKafkaSignalPublisherWithoutProducer(t *testing.T) {
	p := NewKafkaSignalPublisher(nil, "a", "b")
	if err := p.PublishRun(context.Background(), sampleRun()); err != nil {
		t.Fatalf("publish without producer: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
