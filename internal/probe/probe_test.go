package probe

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProber struct {
	name  string
	model string
	err   error
	calls int
}

func (f *fakeProber) Name() string  { return f.name }
func (f *fakeProber) Model() string { return f.model }

func (f *fakeProber) ProbeVision(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestSupportsVisionCachesResult(t *testing.T) {
	c := NewCache(time.Minute)
	p := &fakeProber{name: "fake", model: "m1"}

	for range 5 {
		if !c.SupportsVision(t.Context(), p) {
			t.Fatal("expected vision supported")
		}
	}
	if expected, actual := 1, p.calls; expected != actual {
		t.Errorf("expected %d probe call, got %d", expected, actual)
	}
}

func TestSupportsVisionCachesFailure(t *testing.T) {
	c := NewCache(time.Minute)
	p := &fakeProber{name: "fake", model: "m1", err: errors.New("no vision")}

	for range 3 {
		if c.SupportsVision(t.Context(), p) {
			t.Fatal("expected vision unsupported")
		}
	}
	if expected, actual := 1, p.calls; expected != actual {
		t.Errorf("expected %d probe call, got %d", expected, actual)
	}
}

func TestSupportsVisionTTLExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	p := &fakeProber{name: "fake", model: "m1"}
	c.SupportsVision(t.Context(), p)
	c.SupportsVision(t.Context(), p)
	if expected, actual := 1, p.calls; expected != actual {
		t.Fatalf("expected %d probe call before expiry, got %d", expected, actual)
	}

	now = now.Add(2 * time.Minute)
	c.SupportsVision(t.Context(), p)
	if expected, actual := 2, p.calls; expected != actual {
		t.Errorf("expected %d probe calls after expiry, got %d", expected, actual)
	}
}

func TestSupportsVisionKeyedByModel(t *testing.T) {
	c := NewCache(time.Minute)
	p1 := &fakeProber{name: "fake", model: "m1"}
	p2 := &fakeProber{name: "fake", model: "m2", err: errors.New("no vision")}

	if !c.SupportsVision(t.Context(), p1) {
		t.Error("expected m1 supported")
	}
	if c.SupportsVision(t.Context(), p2) {
		t.Error("expected m2 unsupported")
	}
	if p1.calls != 1 || p2.calls != 1 {
		t.Errorf("expected one probe each, got %d and %d", p1.calls, p2.calls)
	}
}

func TestInvalidate(t *testing.T) {
	c := NewCache(time.Minute)
	p := &fakeProber{name: "fake", model: "m1"}

	c.SupportsVision(t.Context(), p)
	c.Invalidate()
	c.SupportsVision(t.Context(), p)

	if expected, actual := 2, p.calls; expected != actual {
		t.Errorf("expected %d probe calls, got %d", expected, actual)
	}
}
