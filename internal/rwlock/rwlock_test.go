package rwlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Iron-Ham/keeper/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	fn()
}

func TestMode_String(t *testing.T) {
	if Read.String() != "read" {
		t.Errorf("Read.String() = %q, want %q", Read.String(), "read")
	}
	if Write.String() != "write" {
		t.Errorf("Write.String() = %q, want %q", Write.String(), "write")
	}
}

func TestLock_ReadersShareLock(t *testing.T) {
	const n = 8
	lk := New("test")
	ctx := context.Background()

	var inside sync.WaitGroup
	inside.Add(n)
	release := make(chan struct{})
	done := make(chan struct{})

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lk.RLock(ctx); err != nil {
				t.Errorf("RLock() error: %v", err)
				inside.Done()
				return
			}
			inside.Done()
			<-release
			lk.RUnlock()
		}()
	}

	go func() {
		inside.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		close(release)
		wg.Wait()
		t.Fatal("readers blocked each other")
	}

	if got := lk.Stats().Readers; got != n {
		t.Errorf("Readers = %d, want %d", got, n)
	}
	close(release)
	wg.Wait()
	if got := lk.Stats().Readers; got != 0 {
		t.Errorf("Readers after release = %d, want 0", got)
	}
}

func TestLock_MutualExclusion(t *testing.T) {
	lk := New("test")
	ctx := context.Background()

	var readersIn, writersIn atomic.Int32
	var violations atomic.Int32

	check := func() {
		w := writersIn.Load()
		if w > 1 || (w == 1 && readersIn.Load() > 0) {
			violations.Add(1)
		}
	}

	var wg sync.WaitGroup
	for id := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				if (id+j)%4 == 0 {
					if err := lk.Lock(ctx); err != nil {
						t.Errorf("Lock() error: %v", err)
						return
					}
					writersIn.Add(1)
					check()
					writersIn.Add(-1)
					lk.Unlock()
					continue
				}
				if err := lk.RLock(ctx); err != nil {
					t.Errorf("RLock() error: %v", err)
					return
				}
				readersIn.Add(1)
				check()
				readersIn.Add(-1)
				lk.RUnlock()
			}
		}()
	}
	wg.Wait()

	if v := violations.Load(); v != 0 {
		t.Errorf("writer overlapped with readers or another writer %d times", v)
	}
	st := lk.Stats()
	if st.Readers != 0 || st.Writer || st.WritersWaiting != 0 {
		t.Errorf("lock not idle after run: %+v", st)
	}
	if got := st.ReadAcquisitions + st.WriteAcquisitions; got != 16*200 {
		t.Errorf("acquisitions = %d, want %d", got, 16*200)
	}
}

func TestLock_PendingWriterBlocksNewReaders(t *testing.T) {
	lk := New("test")
	ctx := context.Background()

	if err := lk.RLock(ctx); err != nil {
		t.Fatalf("RLock() error: %v", err)
	}

	writerIn := make(chan struct{})
	writerRelease := make(chan struct{})
	go func() {
		if err := lk.Lock(ctx); err != nil {
			t.Errorf("Lock() error: %v", err)
			return
		}
		close(writerIn)
		<-writerRelease
		lk.Unlock()
	}()

	waitFor(t, "pending writer", func() bool { return lk.Stats().WritersWaiting == 1 })

	lateReaderIn := make(chan struct{})
	go func() {
		if err := lk.RLock(ctx); err != nil {
			t.Errorf("RLock() error: %v", err)
			return
		}
		lk.RUnlock()
		close(lateReaderIn)
	}()

	select {
	case <-lateReaderIn:
		t.Fatal("reader overtook a pending writer")
	case <-time.After(50 * time.Millisecond):
	}

	lk.RUnlock()

	select {
	case <-writerIn:
	case <-time.After(2 * time.Second):
		t.Fatal("writer not admitted after readers drained")
	}

	select {
	case <-lateReaderIn:
		t.Fatal("reader admitted while writer holds the lock")
	case <-time.After(20 * time.Millisecond):
	}

	close(writerRelease)

	select {
	case <-lateReaderIn:
	case <-time.After(2 * time.Second):
		t.Fatal("queued reader not admitted after writer released")
	}
}

func TestLock_WriterProgressUnderReaderFlood(t *testing.T) {
	lk := New("test")
	ctx := context.Background()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := lk.RLock(ctx); err != nil {
					t.Errorf("RLock() error: %v", err)
					return
				}
				time.Sleep(100 * time.Microsecond)
				lk.RUnlock()
			}
		}()
	}
	defer func() {
		close(stop)
		wg.Wait()
	}()

	// Let the flood establish itself.
	time.Sleep(10 * time.Millisecond)

	for i := range 5 {
		wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := lk.Lock(wctx)
		cancel()
		if err != nil {
			t.Fatalf("writer starved by readers on attempt %d: %v", i, err)
		}
		lk.Unlock()
	}
}

func TestLock_AbandonedWriteWait(t *testing.T) {
	lk := New("test")
	if err := lk.RLock(context.Background()); err != nil {
		t.Fatalf("RLock() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- lk.Lock(ctx)
	}()

	waitFor(t, "pending writer", func() bool { return lk.Stats().WritersWaiting == 1 })

	// A reader arriving now queues behind the pending writer.
	readerIn := make(chan struct{})
	go func() {
		if err := lk.RLock(context.Background()); err != nil {
			t.Errorf("RLock() error: %v", err)
			return
		}
		lk.RUnlock()
		close(readerIn)
	}()

	cancel()

	err := <-errCh
	if !errors.Is(err, errors.ErrWaitAbandoned) {
		t.Errorf("Lock() error = %v, want ErrWaitAbandoned", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Lock() error = %v, want context.Canceled", err)
	}

	select {
	case <-readerIn:
	case <-time.After(2 * time.Second):
		t.Fatal("reader stuck behind an abandoned writer")
	}

	lk.RUnlock()

	st := lk.Stats()
	if st.WritersWaiting != 0 || st.Writer || st.Readers != 0 {
		t.Errorf("lock not idle after abandoned wait: %+v", st)
	}
	if st.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", st.Abandoned)
	}
	if st.WriteAcquisitions != 0 {
		t.Errorf("WriteAcquisitions = %d, want 0", st.WriteAcquisitions)
	}

	// The lock is fully usable afterwards.
	if err := lk.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() after abandoned wait: %v", err)
	}
	lk.Unlock()
}

func TestLock_AbandonedReadWait(t *testing.T) {
	lk := New("test")
	if err := lk.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := lk.RLock(ctx)
	if !errors.Is(err, errors.ErrWaitAbandoned) {
		t.Errorf("RLock() error = %v, want ErrWaitAbandoned", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RLock() error = %v, want context.DeadlineExceeded", err)
	}

	var lockErr *errors.LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("RLock() error = %T, want *errors.LockError", err)
	}
	if lockErr.Mode != "read" || lockErr.Lock != "test" {
		t.Errorf("LockError = {Lock: %q, Mode: %q}, want {test, read}", lockErr.Lock, lockErr.Mode)
	}

	st := lk.Stats()
	if st.Readers != 0 || !st.Writer {
		t.Errorf("Stats() = %+v, want writer held and no readers", st)
	}

	lk.Unlock()
	if err := lk.RLock(context.Background()); err != nil {
		t.Fatalf("RLock() after release: %v", err)
	}
	lk.RUnlock()
}

func TestLock_ReleaseWithoutHoldPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Lock)
	}{
		{"RUnlock unlocked", func(l *Lock) { l.RUnlock() }},
		{"Unlock unlocked", func(l *Lock) { l.Unlock() }},
		{"Unlock while read-held", func(l *Lock) {
			_ = l.RLock(context.Background())
			l.Unlock()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectPanic(t, func() { tt.fn(New("misuse")) })
		})
	}
}

func TestWithWrite_ReleasesOnPanic(t *testing.T) {
	lk := New("test")

	expectPanic(t, func() {
		_ = lk.WithWrite(context.Background(), func() error {
			panic("boom")
		})
	})

	if lk.Stats().Writer {
		t.Error("writer still held after panic")
	}
	if err := lk.RLock(context.Background()); err != nil {
		t.Fatalf("RLock() after panic: %v", err)
	}
	lk.RUnlock()
}

func TestWithRead_ReturnsFnError(t *testing.T) {
	lk := New("test")
	want := errors.New("read failed")

	err := lk.WithRead(context.Background(), func() error {
		if got := lk.Stats().Readers; got != 1 {
			t.Errorf("Readers inside WithRead = %d, want 1", got)
		}
		return want
	})

	if !errors.Is(err, want) {
		t.Errorf("WithRead() error = %v, want %v", err, want)
	}
	if got := lk.Stats().Readers; got != 0 {
		t.Errorf("Readers after WithRead = %d, want 0", got)
	}
}

type recordingObserver struct {
	mu        sync.Mutex
	acquired  map[Mode]int
	released  map[Mode]int
	abandoned map[Mode]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		acquired:  make(map[Mode]int),
		released:  make(map[Mode]int),
		abandoned: make(map[Mode]int),
	}
}

func (r *recordingObserver) Acquired(_ string, mode Mode, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquired[mode]++
}

func (r *recordingObserver) Released(_ string, mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released[mode]++
}

func (r *recordingObserver) Abandoned(_ string, mode Mode, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned[mode]++
}

func TestLock_Observer(t *testing.T) {
	obs := newRecordingObserver()
	lk := New("observed", WithObserver(obs))
	ctx := context.Background()

	for range 2 {
		if err := lk.RLock(ctx); err != nil {
			t.Fatalf("RLock() error: %v", err)
		}
	}
	lk.RUnlock()
	lk.RUnlock()
	if err := lk.Lock(ctx); err != nil {
		t.Fatalf("Lock() error: %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := lk.RLock(cctx); err == nil {
		t.Error("RLock() with cancelled context succeeded while writer held")
	}
	lk.Unlock()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"acquired read", obs.acquired[Read], 2},
		{"released read", obs.released[Read], 2},
		{"acquired write", obs.acquired[Write], 1},
		{"released write", obs.released[Write], 1},
		{"abandoned read", obs.abandoned[Read], 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
}
