package watch

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestDebouncer_Add(t *testing.T) {
	var mu sync.Mutex
	var calls int
	var files []string

	debouncer := NewDebouncer(50 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		files = f
	})

	debouncer.Add("swap_args.ll")
	debouncer.Add("patterns.yaml")
	debouncer.Add("swap_args.ll") // Duplicate

	if debouncer.Pending() != 2 {
		t.Errorf("Expected 2 pending files, got %d", debouncer.Pending())
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if calls != 1 {
		t.Fatalf("Expected 1 callback call, got %d", calls)
	}
	if want := []string{"patterns.yaml", "swap_args.ll"}; !reflect.DeepEqual(files, want) {
		t.Errorf("Expected %v, got %v", want, files)
	}
	if debouncer.Pending() != 0 {
		t.Errorf("Expected no pending files after flush, got %d", debouncer.Pending())
	}
}

func TestDebouncer_MultipleFlushes(t *testing.T) {
	var mu sync.Mutex
	var callCount int

	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
	})

	// First batch
	debouncer.Add("a.ll")
	time.Sleep(80 * time.Millisecond)

	// Second batch
	debouncer.Add("b.ll")
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if callCount != 2 {
		t.Errorf("Expected 2 callback calls, got %d", callCount)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	var mu sync.Mutex
	var called bool

	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		called = true
	})

	debouncer.Add("a.ll")
	debouncer.Stop()
	debouncer.Add("b.ll")

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if called {
		t.Error("Expected no callback after Stop")
	}
	if debouncer.Pending() != 0 {
		t.Errorf("Expected Add after Stop to be ignored, got %d pending", debouncer.Pending())
	}
}

func TestDebouncer_CallbackMayAdd(t *testing.T) {
	done := make(chan struct{})
	var once sync.Once

	debouncer := NewDebouncer(10 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		if f[0] == "first.ll" {
			debouncer.Add("second.ll")
			return
		}
		once.Do(func() { close(done) })
	})

	debouncer.Add("first.ll")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected a second flush triggered from the callback")
	}
	debouncer.Stop()
}

func BenchmarkDebouncer_Add(b *testing.B) {
	debouncer := NewDebouncer(100 * time.Millisecond)
	debouncer.SetCallback(func(files []string) {})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		debouncer.Add("pattern.ll")
	}
}
