package snowflake

import (
	"sync"
	"testing"
	"time"
)

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name    string
		nodeID  int64
		wantErr bool
	}{
		{"valid node 0", 0, false},
		{"valid node 1", 1, false},
		{"valid node max", 1023, false},
		{"invalid node -1", -1, true},
		{"invalid node 1024", 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.nodeID)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGenerator(%d) error = %v, wantErr %v", tt.nodeID, err, tt.wantErr)
			}
		})
	}
}

func TestGenerate_Unique(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}

	ids := make(map[int64]bool)
	count := 10000

	for i := 0; i < count; i++ {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}

		if ids[id] {
			t.Fatalf("duplicate ID generated: %d", id)
		}
		ids[id] = true
	}
}

func TestGenerate_Monotonic(t *testing.T) {
	gen, err := NewGenerator(7)
	if err != nil {
		t.Fatal(err)
	}

	var prev int64
	for i := 0; i < 1000; i++ {
		id := gen.MustGenerate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	ids := sync.Map{}
	goroutines := 10
	idsPerGoroutine := 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				id, err := gen.Generate()
				if err != nil {
					t.Errorf("Generate() error = %v", err)
					return
				}

				if _, loaded := ids.LoadOrStore(id, true); loaded {
					t.Errorf("duplicate ID: %d", id)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestTimestamp(t *testing.T) {
	gen, err := NewGenerator(3)
	if err != nil {
		t.Fatal(err)
	}

	before := time.Now().Add(-time.Second)
	id := gen.MustGenerate()
	after := time.Now().Add(time.Second)

	ts := Timestamp(id)
	if ts.Before(before) || ts.After(after) {
		t.Errorf("Timestamp(%d) = %v, want between %v and %v", id, ts, before, after)
	}
}
