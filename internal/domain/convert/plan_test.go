package convert

import "testing"

func TestPlan(t *testing.T) {
	cases := []struct {
		name        string
		total       int64
		chunk       int
		bytesPF     int
		wantChunks  int
		wantLast    int64
		wantLastOff int64
	}{
		{"even split", 90_000, 30_000, 8, 3, 30_000, 480_000},
		{"short tail", 70_000, 30_000, 8, 3, 10_000, 480_000},
		{"single short", 100, 30_000, 4, 1, 100, 0},
		{"default chunk", 60_000, 0, 2, 2, 30_000, 60_000},
		{"empty", 0, 30_000, 2, 0, 0, 0},
	}

	for _, c := range cases {
		chunks := Plan(c.total, c.chunk, c.bytesPF)
		if len(chunks) != c.wantChunks {
			t.Errorf("%s: chunks = %d, want %d", c.name, len(chunks), c.wantChunks)
			continue
		}
		if c.wantChunks == 0 {
			continue
		}
		last := chunks[len(chunks)-1]
		if last.Frames != c.wantLast {
			t.Errorf("%s: last chunk frames = %d, want %d", c.name, last.Frames, c.wantLast)
		}
		if last.ByteOffset != c.wantLastOff {
			t.Errorf("%s: last chunk offset = %d, want %d", c.name, last.ByteOffset, c.wantLastOff)
		}

		// Chunks must tile the recording exactly once, in order.
		var covered int64
		for i, ch := range chunks {
			if ch.Index != i {
				t.Errorf("%s: chunk %d has index %d", c.name, i, ch.Index)
			}
			if ch.StartFrame != covered {
				t.Errorf("%s: chunk %d starts at %d, want %d", c.name, i, ch.StartFrame, covered)
			}
			covered += ch.Frames
		}
		if covered != c.total {
			t.Errorf("%s: chunks cover %d frames, want %d", c.name, covered, c.total)
		}
	}
}
