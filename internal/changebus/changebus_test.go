package changebus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestInProcess_PublishSubscribe(t *testing.T) {
	bus := NewInProcess()
	ctx := context.Background()

	var mu sync.Mutex
	var got FileUpdate
	done := make(chan struct{})

	bus.Subscribe(ctx, ChannelFileMetadataUpdates, func(payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.Unmarshal(payload, &got)
		close(done)
	})

	update := FileUpdate{Action: "add", Folder: "custom-documents", File: "a.json"}
	if err := PublishUpdate(ctx, bus, update); err != nil {
		t.Fatalf("PublishUpdate error: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if got != update {
		t.Errorf("got %+v, want %+v", got, update)
	}
}

func TestInProcess_MultipleSubscribers(t *testing.T) {
	bus := NewInProcess()
	ctx := context.Background()

	var count int
	var mu sync.Mutex
	wg := sync.WaitGroup{}
	wg.Add(2)

	for i := 0; i < 2; i++ {
		bus.Subscribe(ctx, "topic", func(_ []byte) {
			mu.Lock()
			count++
			mu.Unlock()
			wg.Done()
		})
	}

	if err := bus.Publish(ctx, "topic", []byte("hi")); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	waitOrTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestInProcess_PublishAfterClose(t *testing.T) {
	bus := NewInProcess()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := bus.Publish(context.Background(), "topic", []byte("x")); err == nil {
		t.Fatal("expected error publishing to closed bus")
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handlers")
	}
}
