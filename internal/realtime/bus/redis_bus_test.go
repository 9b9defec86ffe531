package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

func TestRedisBusPublishForward(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBus(logger.Nop(), mr.Addr(), "test-progress")
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 4)
	if err := b.StartForwarder(ctx, func(m Message) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	for i, step := range []int{1, 2} {
		raw, _ := json.Marshal(map[string]any{"step_id": step})
		if err := b.Publish(ctx, Message{RunID: "run-1", Event: raw}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	for _, want := range []int{1, 2} {
		select {
		case m := <-got:
			var ev struct {
				StepID int `json:"step_id"`
			}
			if err := json.Unmarshal(m.Event, &ev); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if m.RunID != "run-1" || ev.StepID != want {
				t.Fatalf("message: want run-1/%d got=%s/%d", want, m.RunID, ev.StepID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for step %d", want)
		}
	}
}

func TestNewFromEnvDisabled(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	b, err := NewFromEnv(logger.Nop())
	if err != nil || b != nil {
		t.Fatalf("unset REDIS_ADDR: want nil,nil got=%v,%v", b, err)
	}
}
