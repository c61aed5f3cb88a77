package voice

import (
	"errors"
	"sync"
	"testing"
)

func TestPoolCapacityScenario(t *testing.T) {
	p := NewPool(2)

	a, err := p.Allocate(Params{Rate: 5, Volume: 1, Start: 0})
	if err != nil {
		t.Fatalf("allocate A: %v", err)
	}
	b, err := p.Allocate(Params{Rate: -3, Volume: 1, Start: 0})
	if err != nil {
		t.Fatalf("allocate B: %v", err)
	}
	if a != 0 || b != 1 {
		t.Fatalf("ids = %d,%d, want 0,1", a, b)
	}
	if got := p.ActiveCount(); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}

	c, err := p.Allocate(Params{Rate: 1})
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("allocate C err = %v, want ErrCapacityExhausted", err)
	}
	if c != Invalid {
		t.Fatalf("allocate C id = %d, want Invalid", c)
	}
	if st := p.Read(int(b)); !st.Active || st.Rate != -3 {
		t.Fatalf("B disturbed by failed allocation: %+v", st)
	}

	if !p.Release(a) {
		t.Fatalf("release A reported no change")
	}
	if got := p.ActiveCount(); got != 1 {
		t.Fatalf("active after release = %d, want 1", got)
	}
	c, err = p.Allocate(Params{Rate: 2})
	if err != nil {
		t.Fatalf("allocate C after release: %v", err)
	}
	if c != a {
		t.Fatalf("C id = %d, want reuse of %d", c, a)
	}
}

func TestPoolReleaseIsIdempotent(t *testing.T) {
	p := NewPool(4)
	id, _ := p.Allocate(Params{Rate: 1, Volume: 0.8, Start: 0.5})
	if !p.Release(id) {
		t.Fatalf("first release should change state")
	}
	before := p.Read(int(id))
	if p.Release(id) {
		t.Fatalf("second release should be a no-op")
	}
	if after := p.Read(int(id)); after != before {
		t.Fatalf("double release changed state: %+v -> %+v", before, after)
	}
	if p.ActiveCount() != 0 {
		t.Fatalf("active = %d, want 0", p.ActiveCount())
	}
	if _, ok := p.TakeStart(int(id)); ok {
		t.Fatalf("released slot still has a pending start")
	}
	if p.Release(Invalid) || p.Release(ID(99)) {
		t.Fatalf("out-of-range release should be a no-op")
	}
}

func TestPoolReleaseResetsGain(t *testing.T) {
	p := NewPool(1)
	id, _ := p.Allocate(Params{Rate: 1, Volume: 0.9, Start: 0.2})
	p.Release(id)
	if st := p.Read(int(id)); st.Active || st.Volume != 0 {
		t.Fatalf("state after release = %+v, want inactive with zero volume", st)
	}
}

func TestPoolTakeStartIsOneShot(t *testing.T) {
	p := NewPool(1)
	id, _ := p.Allocate(Params{Rate: 1, Start: 0.25})
	pos, ok := p.TakeStart(int(id))
	if !ok || pos != 0.25 {
		t.Fatalf("TakeStart = %v,%v, want 0.25,true", pos, ok)
	}
	if _, ok := p.TakeStart(int(id)); ok {
		t.Fatalf("start request should be consumed")
	}
}

func TestPoolStartIsClamped(t *testing.T) {
	p := NewPool(2)
	a, _ := p.Allocate(Params{Start: 3})
	b, _ := p.Allocate(Params{Start: -0.5})
	if pos, ok := p.TakeStart(int(a)); !ok || pos != 1 {
		t.Fatalf("start above range = %v,%v, want 1,true", pos, ok)
	}
	if _, ok := p.TakeStart(int(b)); ok {
		t.Fatalf("negative start should mean no start")
	}
}

func TestPoolUpdatesIgnoredForFreeSlots(t *testing.T) {
	p := NewPool(1)
	if p.SetRate(0, 3) || p.SetModulation(0, 1, 1, 1) {
		t.Fatalf("updates to a free slot should be rejected")
	}
	id, _ := p.Allocate(Params{Rate: 1})
	if !p.SetRate(id, -2) || !p.SetModulation(id, 0.5, 0.25, 0.75) {
		t.Fatalf("updates to an active slot should be accepted")
	}
	st := p.Read(int(id))
	if st.Rate != -2 || st.Volume != 0.5 || st.FilterMod != 0.25 || st.Pan != 0.75 {
		t.Fatalf("state = %+v", st)
	}
}

func TestPoolReleaseAll(t *testing.T) {
	p := NewPool(3)
	for i := 0; i < 3; i++ {
		p.Allocate(Params{Rate: 1})
	}
	if n := p.ReleaseAll(); n != 3 {
		t.Fatalf("ReleaseAll = %d, want 3", n)
	}
	if n := p.ReleaseAll(); n != 0 {
		t.Fatalf("second ReleaseAll = %d, want 0", n)
	}
}

func TestPoolConcurrentAllocateRelease(t *testing.T) {
	const capacity = 8
	p := NewPool(capacity)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		owner = make(map[ID]int)
		fails int
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id, err := p.Allocate(Params{Rate: 1})
				if err != nil {
					mu.Lock()
					fails++
					mu.Unlock()
					continue
				}
				mu.Lock()
				if prev, dup := owner[id]; dup {
					mu.Unlock()
					t.Errorf("id %d handed to worker %d while held by %d", id, w, prev)
					return
				}
				owner[id] = w
				if len(owner) > capacity {
					t.Errorf("%d voices active, capacity %d", len(owner), capacity)
				}
				delete(owner, id)
				mu.Unlock()
				p.Release(id)
			}
		}(w)
	}
	wg.Wait()

	if got := p.ActiveCount(); got != 0 {
		t.Fatalf("active after workers = %d, want 0", got)
	}
}
