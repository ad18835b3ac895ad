package gaps

import (
	"testing"
)

func TestDetect(t *testing.T) {
	keys := []string{"PROJ-1", "PROJ-2", "PROJ-4", "PROJ-5", "PROJ-8"}
	found := Detect(keys, nil)

	want := []Gap{
		{StartNumber: 3, EndNumber: 3, Reason: ReasonMissing},
		{StartNumber: 6, EndNumber: 7, Reason: ReasonMissing},
	}
	if len(found) != len(want) {
		t.Fatalf("expected %d gaps, got %d: %+v", len(want), len(found), found)
	}
	for i, g := range want {
		if found[i] != g {
			t.Errorf("gap %d = %+v, want %+v", i, found[i], g)
		}
	}
}

func TestDetectNoGaps(t *testing.T) {
	if found := Detect([]string{"P-1", "P-2", "P-3"}, nil); len(found) != 0 {
		t.Errorf("expected no gaps, got %+v", found)
	}
}

func TestDetectUnsortedInput(t *testing.T) {
	found := Detect([]string{"P-5", "P-1", "P-3"}, nil)
	want := []Gap{
		{StartNumber: 2, EndNumber: 2, Reason: ReasonMissing},
		{StartNumber: 4, EndNumber: 4, Reason: ReasonMissing},
	}
	if len(found) != len(want) {
		t.Fatalf("expected %d gaps, got %+v", len(want), found)
	}
	for i, g := range want {
		if found[i] != g {
			t.Errorf("gap %d = %+v, want %+v", i, found[i], g)
		}
	}
}

func TestDetectFewKeys(t *testing.T) {
	if found := Detect(nil, nil); found != nil {
		t.Errorf("nil keys: got %+v", found)
	}
	if found := Detect([]string{"P-7"}, nil); found != nil {
		t.Errorf("single key: got %+v", found)
	}
}

func TestDetectSkipsUnparseableKeys(t *testing.T) {
	keys := []string{"P-1", "WEIRD", "P-3", "P-x"}
	found := Detect(keys, nil)

	want := []Gap{{StartNumber: 2, EndNumber: 2, Reason: ReasonMissing}}
	if len(found) != 1 || found[0] != want[0] {
		t.Errorf("got %+v, want %+v", found, want)
	}
}
