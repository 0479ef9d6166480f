package identity

import (
	"math"
	"testing"
)

func intp(v int) *int          { return &v }
func floatp(v float64) *float64 { return &v }

func TestUniqueID_ZeroTuple(t *testing.T) {
	// SHA-1("0-0-0-0-0-0-0-0-0") = 7978d440f217...
	got := UniqueID(Tuple{})
	if got != "7978d440" {
		t.Fatalf("expected 7978d440 for the all-zero tuple, got %s", got)
	}
}

func TestUniqueID_NilEqualsZero(t *testing.T) {
	explicit := UniqueID(Tuple{
		PaintSeed: intp(0), PaintIndex: intp(0), PaintWear: floatp(0),
		DefIndex: intp(0), Origin: intp(0), Rarity: intp(0),
		QuestID: intp(0), Quality: intp(0), DropReason: intp(0),
	})
	implicit := UniqueID(Tuple{})
	if explicit != implicit {
		t.Fatalf("explicit zeros (%s) and nil fields (%s) must hash identically", explicit, implicit)
	}
}

func TestUniqueID_Deterministic(t *testing.T) {
	tuple := Tuple{
		PaintSeed:  intp(661),
		PaintIndex: intp(44),
		PaintWear:  floatp(WearFromBits(1022739087)),
		DefIndex:   intp(7),
		Rarity:     intp(6),
		Quality:    intp(4),
	}

	first := UniqueID(tuple)
	for i := 0; i < 100; i++ {
		if got := UniqueID(tuple); got != first {
			t.Fatalf("run %d produced %s, first run produced %s", i, got, first)
		}
	}
	if len(first) != 8 {
		t.Fatalf("expected 8 hex chars, got %q", first)
	}
}

func TestUniqueID_FieldOrderMatters(t *testing.T) {
	a := UniqueID(Tuple{PaintSeed: intp(1)})
	b := UniqueID(Tuple{PaintIndex: intp(1)})
	if a == b {
		t.Fatalf("swapping a value between fields must change the hash")
	}
}

func TestWearFromBits(t *testing.T) {
	cases := []struct {
		bits uint32
		want float64
	}{
		{1065353216, 1.0},
		{0, 0.0},
		{1022739087, 0.029999999329447746},
	}
	for _, c := range cases {
		got := WearFromBits(c.bits)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("WearFromBits(%d) = %v, want %v", c.bits, got, c.want)
		}
	}
}

func TestUnsignedID(t *testing.T) {
	if got := UnsignedID(-1); got != 18446744073709551615 {
		t.Errorf("UnsignedID(-1) = %d, want 18446744073709551615", got)
	}
	if got := UnsignedID(0); got != 0 {
		t.Errorf("UnsignedID(0) = %d, want 0", got)
	}
	if got := SignedID(18446744073709551615); got != -1 {
		t.Errorf("SignedID(max) = %d, want -1", got)
	}
	// Values below 2^63 pass through unchanged.
	if got := UnsignedID(76561198000000001); got != 76561198000000001 {
		t.Errorf("UnsignedID(steamid) = %d, want identity", got)
	}
}
