package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (f *fakePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic = topic
	f.batches = append(f.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestLoggerWritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).With(String("run_id", "r1"))
	l.Info("run done", Int("trades", 3), Float64("factor", 1.25), Error(errors.New("boom")), Ints("dates", []int{20210301, 20210302}))

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["run_id"] != "r1" || got["trades"] != float64(3) || got["factor"] != 1.25 {
		t.Fatalf("unexpected fields: %v", got)
	}
	if got["error"] != "boom" || got["dates"] != "20210301,20210302" {
		t.Fatalf("unexpected fields: %v", got)
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level")
	}
}

func TestCollectorAggregatesWarnings(t *testing.T) {
	pub := &fakePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "audit", Publisher: pub})
	for i := 0; i < 3; i++ {
		l.Warn("holiday drop", String("date", "20210211"))
	}
	l.Warn("end of series", String("kind", "promoted"))
	l.Info("not audited")
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "audit" || len(pub.batches) != 1 {
		t.Fatalf("expected one batch on audit, got %d on %q", len(pub.batches), pub.topic)
	}
	batch := pub.batches[0]
	if len(batch) != 2 || batch[0].Count != 3 || batch[0].Message != "holiday drop" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}
