package touch

import "testing"

func TestClassify(t *testing.T) {
	testcases := []struct {
		builtin  bool
		familyID int32
		kind     Kind
	}{
		// builtin wins regardless of family id
		{true, 0, KindInternalTrackpad},
		{true, 112, KindInternalTrackpad},
		{true, 128, KindInternalTrackpad},
		{true, 9999, KindInternalTrackpad},
		// magic mouse families
		{false, 112, KindMagicMouse},
		{false, 113, KindMagicMouse},
		// external trackpad families
		{false, 128, KindExternalTrackpad},
		{false, 129, KindExternalTrackpad},
		{false, 130, KindExternalTrackpad},
		// boundaries fall out to unknown
		{false, 111, KindUnknown},
		{false, 114, KindUnknown},
		{false, 127, KindUnknown},
		{false, 131, KindUnknown},
		{false, 0, KindUnknown},
		{false, -1, KindUnknown},
	}
	for _, tc := range testcases {
		c := Classify(tc.builtin, tc.familyID)
		if c.Kind != tc.kind {
			t.Errorf("Classify(%v, %d): expected %v, got %v", tc.builtin, tc.familyID, tc.kind, c.Kind)
		}
		if c.FamilyID != tc.familyID {
			t.Errorf("Classify(%v, %d): family id not preserved, got %d", tc.builtin, tc.familyID, c.FamilyID)
		}
	}
}

func TestClassifyPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if c := Classify(false, 129); c.Kind != KindExternalTrackpad {
			t.Fatalf("call %d: expected external trackpad, got %v", i, c)
		}
	}
}

func TestClassString(t *testing.T) {
	if s := Classify(false, 200).String(); s != "unknown(family 200)" {
		t.Errorf("unexpected unknown string %q", s)
	}
	if s := Classify(true, 200).String(); s != "internal-trackpad" {
		t.Errorf("unexpected internal string %q", s)
	}
}
