package srtp

import (
	"sync"
	"testing"
)

func TestEstimateROC(t *testing.T) {
	tests := []struct {
		name        string
		initialized bool
		roc         uint32
		lastSeq     uint16
		seq         uint16
		expected    uint32
		ok          bool
	}{
		{name: "first packet", seq: 0xffff, expected: 0, ok: true},
		{name: "in order", initialized: true, roc: 3, lastSeq: 10, seq: 11, expected: 3, ok: true},
		{name: "wrap forward", initialized: true, roc: 3, lastSeq: 0xff80, seq: 0x0002, expected: 4, ok: true},
		{name: "late from previous roc", initialized: true, roc: 3, lastSeq: 0x0002, seq: 0xff80, expected: 2, ok: true},
		{name: "late at roc zero", initialized: true, roc: 0, lastSeq: 0x0002, seq: 0xff80, expected: 0, ok: true},
		{name: "large forward jump", initialized: true, roc: 1, lastSeq: 100, seq: 30000, expected: 1, ok: true},
		{name: "upper half in order", initialized: true, roc: 1, lastSeq: 40000, seq: 40001, expected: 1, ok: true},
		{name: "upper half reorder", initialized: true, roc: 1, lastSeq: 40000, seq: 39000, expected: 1, ok: true},
		{name: "roc exhausted", initialized: true, roc: maxROC, lastSeq: 0xffff, seq: 0, ok: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := &srtpSSRCState{initialized: test.initialized, roc: test.roc, lastSeq: test.lastSeq}
			roc, ok := s.estimateROC(test.seq)
			if ok != test.ok {
				t.Fatalf("ok %v, want %v", ok, test.ok)
			}
			if ok && roc != test.expected {
				t.Errorf("roc %d, want %d", roc, test.expected)
			}
		})
	}
}

func TestSSRCStateUpdate(t *testing.T) {
	s := &srtpSSRCState{}
	s.update(0xfffe, 0)
	s.update(0x0001, 1)
	s.update(0xffff, 0)
	if s.roc != 1 || s.lastSeq != 1 {
		t.Errorf("roc %d last %d, older index should not move state", s.roc, s.lastSeq)
	}

	c := &srtcpSSRCState{}
	if index, err := c.nextIndex(); err != nil || index != 0 {
		t.Error("first index should be 0:", index, err)
	}
	c.update(0)
	c.update(5)
	c.update(3)
	if c.index != 5 {
		t.Error("srtcp index", c.index)
	}
	if index, _ := c.nextIndex(); index != 6 {
		t.Error("next index", index)
	}
}

func TestStateTable(t *testing.T) {
	table := newStateTable(func(ssrc uint32) *srtcpSSRCState {
		return &srtcpSSRCState{ssrc: ssrc}
	})
	var wg sync.WaitGroup
	states := make([]*srtcpSSRCState, 8)
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = table.getOrCreate(0xabc)
		}(i)
	}
	wg.Wait()
	for _, s := range states {
		if s != states[0] {
			t.Fatal("concurrent creation should yield one state")
		}
	}

	for ssrc := uint32(0); ssrc < 100; ssrc++ {
		table.getOrCreate(ssrc)
	}
	if n := table.len(); n != 101 {
		t.Error("expected 101 states, got", n)
	}
	table.remove(0xabc)
	if _, ok := table.get(0xabc); ok {
		t.Error("state should be removed")
	}
	if s, ok := table.get(42); !ok || s.ssrc != 42 {
		t.Error("lookup failed")
	}
}
