package srtp

import (
	"reflect"
	"testing"
)

func TestReplayDetector(t *testing.T) {
	const largeSeq = 0x100000000000
	const max48 = 0x0000FFFFFFFFFFFF

	tests := []struct {
		name       string
		windowSize uint
		maxIndex   uint64
		input      []uint64
		valid      []bool
		expected   []uint64
	}{
		{
			name:       "Continuous",
			windowSize: 16,
			maxIndex:   max48,
			input:      []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			valid:      repeatBool(true, 21),
			expected:   []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
		},
		{
			name:       "ValidLargeJump",
			windowSize: 16,
			maxIndex:   max48,
			input:      []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, largeSeq, 11, largeSeq + 1, largeSeq + 2, largeSeq + 3},
			valid:      repeatBool(true, 15),
			expected:   []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, largeSeq, largeSeq + 1, largeSeq + 2, largeSeq + 3},
		},
		{
			name:       "InvalidLargeJump",
			windowSize: 16,
			maxIndex:   max48,
			input:      []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, largeSeq, 11, 12, 13, 14, 15},
			valid:      []bool{true, true, true, true, true, true, true, true, true, true, false, true, true, true, true, true},
			expected:   []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 11, 12, 13, 14, 15},
		},
		{
			name:       "DuplicateAfterValidJump",
			windowSize: 196,
			maxIndex:   max48,
			input:      []uint64{0, 1, 2, 129, 0, 1, 2},
			valid:      repeatBool(true, 7),
			expected:   []uint64{0, 1, 2, 129},
		},
		{
			name:       "DuplicateAfterInvalidJump",
			windowSize: 196,
			maxIndex:   max48,
			input:      []uint64{0, 1, 2, 128, 0, 1, 2},
			valid:      []bool{true, true, true, false, true, true, true},
			expected:   []uint64{0, 1, 2},
		},
		{
			name:       "ContinuousOffset",
			windowSize: 16,
			maxIndex:   max48,
			input:      []uint64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112, 113, 114},
			valid:      repeatBool(true, 15),
			expected:   []uint64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112, 113, 114},
		},
		{
			name:       "Reordered",
			windowSize: 128,
			maxIndex:   max48,
			input:      []uint64{96, 64, 16, 80, 32, 48, 8, 24, 88, 40, 128, 56, 72, 112, 104, 120},
			valid:      repeatBool(true, 16),
			expected:   []uint64{96, 64, 16, 80, 32, 48, 8, 24, 88, 40, 128, 56, 72, 112, 104, 120},
		},
		{
			name:       "Old",
			windowSize: 100,
			maxIndex:   max48,
			input:      []uint64{24, 32, 40, 48, 56, 64, 72, 80, 88, 96, 104, 112, 120, 128, 8, 16},
			valid:      repeatBool(true, 16),
			expected:   []uint64{24, 32, 40, 48, 56, 64, 72, 80, 88, 96, 104, 112, 120, 128},
		},
		{
			name:       "ContinuousReplayed",
			windowSize: 8,
			maxIndex:   max48,
			input:      []uint64{16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25},
			valid:      repeatBool(true, 20),
			expected:   []uint64{16, 17, 18, 19, 20, 21, 22, 23, 24, 25},
		},
		{
			name:       "ReplayedLater",
			windowSize: 128,
			maxIndex:   max48,
			input:      []uint64{16, 32, 48, 64, 80, 96, 112, 128, 16, 32, 48, 64, 80, 96, 112, 128},
			valid:      repeatBool(true, 16),
			expected:   []uint64{16, 32, 48, 64, 80, 96, 112, 128},
		},
		{
			name:       "ReplayedQuick",
			windowSize: 128,
			maxIndex:   max48,
			input:      []uint64{16, 16, 32, 32, 48, 48, 64, 64, 80, 80, 96, 96, 112, 112, 128, 128},
			valid:      repeatBool(true, 16),
			expected:   []uint64{16, 32, 48, 64, 80, 96, 112, 128},
		},
		{
			name:       "Strict",
			windowSize: 0,
			maxIndex:   max48,
			input:      []uint64{1, 3, 2, 4, 5, 6, 7, 8, 9, 10},
			valid:      repeatBool(true, 10),
			expected:   []uint64{1, 3, 4, 5, 6, 7, 8, 9, 10},
		},
		{
			name:       "Overflow",
			windowSize: 128,
			maxIndex:   max48,
			input:      []uint64{0x0000FFFFFFFFFFFE, 0x0000FFFFFFFFFFFF, 0x0001000000000000, 0x0001000000000001},
			valid:      repeatBool(true, 4),
			expected:   []uint64{0x0000FFFFFFFFFFFE, 0x0000FFFFFFFFFFFF},
		},
		{
			name:       "SRTCPIndexLimit",
			windowSize: 64,
			maxIndex:   maxSRTCPIndex,
			input:      []uint64{1, 2, maxSRTCPIndex, maxSRTCPIndex + 1},
			valid:      repeatBool(true, 4),
			expected:   []uint64{1, 2, maxSRTCPIndex},
		},
		{
			name:       "WideWindowShiftAcrossWords",
			windowSize: 200,
			maxIndex:   max48,
			input:      []uint64{10, 75, 140, 199, 10, 75, 140, 11, 209, 9},
			valid:      repeatBool(true, 10),
			expected:   []uint64{10, 75, 140, 199, 11, 209},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := NewReplayDetector(tt.windowSize, tt.maxIndex)
			var out []uint64
			for i, index := range tt.input {
				c, ok := det.Check(index)
				if ok && tt.valid[i] {
					out = append(out, index)
					det.Accept(c)
				}
			}
			if !reflect.DeepEqual(out, tt.expected) {
				t.Errorf("accepted %v, want %v", out, tt.expected)
			}
		})
	}
}

func TestReplayDetectorCheckIsPure(t *testing.T) {
	det := NewReplayDetector(64, maxSRTPIndex)
	first, ok := det.Check(100)
	if !ok {
		t.Fatal("first check should pass")
	}
	second, ok := det.Check(100)
	if !ok {
		t.Fatal("check without accept must not record the index")
	}
	det.Accept(first)
	det.Accept(second)
	if _, ok := det.Check(100); ok {
		t.Fatal("index should be rejected after accept")
	}
	det.Accept(Commit{})
	if _, ok := det.Check(99); !ok {
		t.Fatal("zero commit must not touch the window")
	}
}

func TestNoOpReplayDetector(t *testing.T) {
	det := NewNoOpReplayDetector()
	for i := 0; i < 3; i++ {
		c, ok := det.Check(7)
		if !ok {
			t.Fatal("noop detector rejected a packet")
		}
		det.Accept(c)
	}
}

func TestWindowMaskShift(t *testing.T) {
	m := newWindowMask(130)
	m.setBit(0)
	m.setBit(63)
	m.setBit(129)
	m.lsh(1)
	for _, i := range []uint{1, 64} {
		if !m.bit(i) {
			t.Errorf("bit %d should be set after shift", i)
		}
	}
	if m.bit(0) || m.bit(63) || m.bit(129) {
		t.Errorf("unexpected bits after shift: %v", m.bits)
	}
	m.lsh(64)
	if !m.bit(65) || !m.bit(128) || m.bit(1) || m.bit(64) {
		t.Errorf("unexpected bits after word shift: %v", m.bits)
	}
	m.lsh(200)
	for i := uint(0); i < 130; i++ {
		if m.bit(i) {
			t.Fatalf("bit %d should be cleared", i)
		}
	}
}

func repeatBool(v bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}
