package capture

import "testing"

func TestTranscript_FinalJoinsFinalsInOrder(t *testing.T) {
	tr := NewTranscript()
	tr.Append("I need a quote", false)
	tr.Append("I need a quote for a 6 by 4 meter concrete slab ", true)
	tr.Append("for Sarah", false)
	tr.Append("for Sarah Johnson's backyard in Melbourne", true)

	want := "I need a quote for a 6 by 4 meter concrete slab for Sarah Johnson's backyard in Melbourne"
	if got := tr.Final(); got != want {
		t.Errorf("Final() = %q, want %q", got, want)
	}
}

func TestTranscript_Live(t *testing.T) {
	tr := NewTranscript()

	tr.Append("six by", false)
	if got := tr.Live(); got != "six by" {
		t.Errorf("Live() = %q, want %q", got, "six by")
	}

	tr.Append("six by four slab", true)
	tr.Append("in Melb", false)
	if got := tr.Live(); got != "six by four slab in Melb" {
		t.Errorf("Live() = %q", got)
	}

	tr.Append("in Melbourne", true)
	if got := tr.Live(); got != tr.Final() {
		t.Errorf("Live() = %q, want the final text %q", got, tr.Final())
	}
}

func TestTranscript_FreezeRejectsAppends(t *testing.T) {
	tr := NewTranscript()
	tr.Append("before", true)
	tr.Freeze()

	if tr.Append("after", true) {
		t.Error("expected append after freeze to be rejected")
	}
	if tr.Final() != "before" {
		t.Errorf("unexpected final %q", tr.Final())
	}
	if !tr.Frozen() {
		t.Error("expected transcript to be frozen")
	}
}

func TestTranscript_SegmentsKeepArrivalOrder(t *testing.T) {
	tr := NewTranscript()
	tr.Append("a", false)
	tr.Append("b", true)
	tr.Append("c", true)

	segs := tr.Segments()
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	for i, s := range segs {
		if s.Seq != i+1 {
			t.Errorf("segment %d has seq %d", i, s.Seq)
		}
	}
	if segs[0].Final || !segs[1].Final {
		t.Error("final flags not preserved")
	}

	segs[0].Text = "mutated"
	if tr.Segments()[0].Text != "a" {
		t.Error("Segments must return a copy")
	}
}

func TestTranscript_Empty(t *testing.T) {
	tr := NewTranscript()
	tr.Append("   ", true)

	if tr.Final() != "" {
		t.Errorf("expected empty final, got %q", tr.Final())
	}
	if tr.Live() != "" {
		t.Errorf("expected empty live, got %q", tr.Live())
	}
}
