package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu        sync.Mutex
	errs      []error
	recovered chan any
}

func (r *recorder) CaptureException(err error, _ map[string]string) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) Recover() {
	if v := recover(); v != nil {
		r.recovered <- v
	}
}

func (r *recorder) Flush(time.Duration) {}

func TestInitReturnsPrevious(t *testing.T) {
	rec := &recorder{}
	prev := Init(rec)
	defer Init(prev)
	if _, ok := prev.(NopMonitor); !ok {
		t.Fatalf("default monitor = %T", prev)
	}
	if got := Init(nil); got != rec {
		t.Fatalf("nil Init replaced the monitor")
	}
}

func TestCaptureExceptionSkipsNil(t *testing.T) {
	rec := &recorder{}
	defer Init(Init(rec))
	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"component": "test"})
	if len(rec.errs) != 1 {
		t.Fatalf("captured %d errors, want 1", len(rec.errs))
	}
}

func TestGoReportsPanics(t *testing.T) {
	rec := &recorder{recovered: make(chan any, 1)}
	defer Init(Init(rec))
	Go(func() { panic("worker died") })
	select {
	case v := <-rec.recovered:
		if v != "worker died" {
			t.Fatalf("recovered %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("panic not reported")
	}
}
