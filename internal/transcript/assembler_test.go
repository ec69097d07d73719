package transcript

import (
	"strings"
	"testing"
)

func TestAssembler_Append_OutOfOrder(t *testing.T) {
	a := NewAssembler()

	a.Append(2, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "third"}})
	a.Append(0, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "first"}})
	a.Append(1, []SpeakerTurn{{Speaker: SpeakerPatient, Text: "second"}})

	ordered := a.Ordered()
	if len(ordered) != 3 {
		t.Fatalf("got %d entries, want 3", len(ordered))
	}
	for i, want := range []string{"first", "second", "third"} {
		if ordered[i].Text != want {
			t.Errorf("entry %d text = %q, want %q", i, ordered[i].Text, want)
		}
		if ordered[i].SegmentIndex != uint64(i) {
			t.Errorf("entry %d segment index = %d, want %d", i, ordered[i].SegmentIndex, i)
		}
	}
}

func TestAssembler_Append_DuplicateSegmentDiscarded(t *testing.T) {
	a := NewAssembler()

	first := a.Append(0, []SpeakerTurn{
		{Speaker: SpeakerDoctor, Text: "hello"},
		{Speaker: SpeakerPatient, Text: "hi"},
	})
	if len(first) != 2 {
		t.Fatalf("first append added %d entries, want 2", len(first))
	}

	again := a.Append(0, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "hello"}})
	if len(again) != 0 {
		t.Errorf("duplicate append added %d entries, want 0", len(again))
	}
	if a.Len() != 2 {
		t.Errorf("len = %d, want 2", a.Len())
	}
}

func TestAssembler_Append_PreservesOrderWithinSegment(t *testing.T) {
	a := NewAssembler()
	a.Append(5, []SpeakerTurn{
		{Speaker: SpeakerDoctor, Text: "how are you"},
		{Speaker: SpeakerPatient, Text: "fine"},
		{Speaker: SpeakerDoctor, Text: "good"},
	})

	ordered := a.Ordered()
	want := []string{"how are you", "fine", "good"}
	for i, w := range want {
		if ordered[i].Text != w {
			t.Errorf("entry %d text = %q, want %q", i, ordered[i].Text, w)
		}
	}
}

func TestAssembler_Append_SkipsEmptyTurns(t *testing.T) {
	a := NewAssembler()
	added := a.Append(0, []SpeakerTurn{
		{Speaker: SpeakerDoctor, Text: "  "},
		{Speaker: SpeakerPatient, Text: "real text"},
		{Speaker: SpeakerDoctor, Text: ""},
	})
	if len(added) != 1 {
		t.Fatalf("added %d entries, want 1", len(added))
	}
	if added[0].Text != "real text" {
		t.Errorf("text = %q, want %q", added[0].Text, "real text")
	}
}

func TestAssembler_RecentContext(t *testing.T) {
	a := NewAssembler()
	if got := a.RecentContext(3); got != "" {
		t.Errorf("empty assembler context = %q, want empty", got)
	}

	a.Append(0, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "one"}})
	a.Append(1, []SpeakerTurn{{Speaker: SpeakerPatient, Text: "two"}})
	a.Append(2, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "three"}})
	a.Append(3, []SpeakerTurn{{Speaker: SpeakerPatient, Text: "four"}})

	got := a.RecentContext(3)
	want := "Patient: two\nDoctor: three\nPatient: four"
	if got != want {
		t.Errorf("context = %q, want %q", got, want)
	}
}

func TestAssembler_Format(t *testing.T) {
	a := NewAssembler()
	a.Append(1, []SpeakerTurn{{Speaker: SpeakerPatient, Text: "it hurts here"}})
	a.Append(0, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "where does it hurt"}})

	got := a.Format()
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "Doctor: where does it hurt" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "Patient: it hurts here" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestAssembler_OnGrowth(t *testing.T) {
	a := NewAssembler()
	var lengths []int
	a.OnGrowth(func(length int) {
		lengths = append(lengths, length)
	})

	a.Append(0, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "a"}})
	a.Append(1, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "b"}, {Speaker: SpeakerPatient, Text: "c"}})
	a.Append(1, []SpeakerTurn{{Speaker: SpeakerDoctor, Text: "dup"}}) // duplicate, no callback
	a.Append(2, nil)                                                  // nothing added, no callback

	if len(lengths) != 2 {
		t.Fatalf("callback fired %d times, want 2", len(lengths))
	}
	if lengths[0] != 1 || lengths[1] != 3 {
		t.Errorf("lengths = %v, want [1 3]", lengths)
	}
}
