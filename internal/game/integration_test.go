package game

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// INTEGRATION TESTS: FULL SESSIONS
// These drive the engine the way the server and terminal client do
// =============================================================================

// script replays the same inputs on any engine
func script(e *Engine, ticks int) {
	for i := 0; i < ticks; i++ {
		switch {
		case i%120 == 0:
			e.SetInput(KeyState{Up: true})
		case i%120 == 40:
			e.SetInput(KeyState{Left: true, Up: true})
		case i%120 == 80:
			e.SetInput(KeyState{Down: true, Right: true})
		}
		if i%45 == 0 {
			e.Fire()
		}
		e.Step()
	}
}

// TestIntegration_Determinism checks two sessions with one seed agree tick for tick
func TestIntegration_Determinism(t *testing.T) {
	a, _ := newTestEngine(t)
	defer a.Close()
	b, _ := newTestEngine(t)
	defer b.Close()

	script(a, 600)
	script(b, 600)

	sa, sb := a.GetSnapshot(), b.GetSnapshot()
	if sa.TickNumber != sb.TickNumber {
		t.Fatalf("Tick mismatch %d vs %d", sa.TickNumber, sb.TickNumber)
	}
	if !reflect.DeepEqual(sa.Entities, sb.Entities) {
		t.Errorf("Entity state diverged after %d ticks", sa.TickNumber)
	}
	if !reflect.DeepEqual(sa.Particles, sb.Particles) {
		t.Errorf("Particles diverged after %d ticks", sa.TickNumber)
	}
	if !reflect.DeepEqual(sa.Tiles, sb.Tiles) {
		t.Error("Ground tiles differ for the same seed")
	}
	if sa.Outcome != sb.Outcome {
		t.Errorf("Outcome diverged: %s vs %s", sa.Outcome, sb.Outcome)
	}
}

// TestIntegration_GameLoopWithReaders runs the tick loop while clients read
// snapshots and send input concurrently
func TestIntegration_GameLoopWithReaders(t *testing.T) {
	e, lib := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)

	var (
		reads    int64
		inputs   int64
		backward int64
	)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Walk the whole snapshot so the race detector sees every field
				snap := e.GetSnapshot()
				if snap.Sequence < last {
					atomic.AddInt64(&backward, 1)
				}
				last = snap.Sequence
				var sum float64
				for _, ent := range snap.Entities {
					sum += ent.X + ent.Y + ent.Rotation
				}
				for _, p := range snap.Particles {
					sum += p.Opacity
				}
				_ = sum + float64(len(snap.Tiles))
				atomic.AddInt64(&reads, 1)
				time.Sleep(time.Millisecond)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		keys := []KeyState{{Up: true}, {Left: true}, {Down: true, Right: true}, {}}
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.SetInput(keys[i%len(keys)])
				if i%5 == 0 {
					e.Fire()
				}
				atomic.AddInt64(&inputs, 1)
			}
		}
	}()

	time.Sleep(500 * time.Millisecond)
	close(stop)
	wg.Wait()
	cancel()
	e.Stop()

	if atomic.LoadInt64(&reads) == 0 || atomic.LoadInt64(&inputs) == 0 {
		t.Fatalf("Expected activity, got %d reads and %d inputs", reads, inputs)
	}
	if backward != 0 {
		t.Errorf("Snapshot sequence went backwards %d times", backward)
	}
	if e.GetSnapshot().TickNumber == 0 {
		t.Error("Expected the loop to have ticked")
	}

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if lib.Active() != 0 {
		t.Errorf("Leaked %d leases", lib.Active())
	}
}
