package detect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"pulse_bot/internal/fetcher"
	"pulse_bot/internal/model"
)

func item(id string, reactions, comments, shares int64) fetcher.Item {
	return fetcher.Item{
		ID:      id,
		Metrics: model.Metrics{Reactions: reactions, Comments: comments, Shares: shares},
	}
}

func TestFingerprintIgnoresOrderAndIDs(t *testing.T) {
	b1 := []fetcher.Item{item("a", 100, 10, 1), item("b", 50, 5, 2)}
	b2 := []fetcher.Item{item("x", 50, 5, 2), item("y", 100, 10, 1)}

	if diff := cmp.Diff(Fingerprint(b1), Fingerprint(b2)); diff != "" {
		t.Errorf("fingerprints of equal-sum batches differ (-b1 +b2):\n%s", diff)
	}
}

func TestFingerprintEqualSumsCollide(t *testing.T) {
	// The aggregate-sum digest is deliberately lossy: distributions with
	// identical sums produce the same fingerprint.
	b1 := []fetcher.Item{item("a", 100, 0, 0), item("b", 50, 0, 0)}
	b2 := []fetcher.Item{item("a", 150, 0, 0)}

	if Fingerprint(b1) != Fingerprint(b2) {
		t.Error("expected identical fingerprints for identical aggregate sums")
	}
}

func TestFingerprintDetectsMovement(t *testing.T) {
	tests := []struct {
		name string
		b1   []fetcher.Item
		b2   []fetcher.Item
	}{
		{
			name: "reactions moved",
			b1:   []fetcher.Item{item("a", 100, 10, 1)},
			b2:   []fetcher.Item{item("a", 101, 10, 1)},
		},
		{
			name: "comments moved",
			b1:   []fetcher.Item{item("a", 100, 10, 1)},
			b2:   []fetcher.Item{item("a", 100, 11, 1)},
		},
		{
			name: "shares moved",
			b1:   []fetcher.Item{item("a", 100, 10, 1)},
			b2:   []fetcher.Item{item("a", 100, 10, 2)},
		},
		{
			name: "metric types not interchangeable",
			b1:   []fetcher.Item{item("a", 100, 10, 1)},
			b2:   []fetcher.Item{item("a", 10, 100, 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Fingerprint(tt.b1) == Fingerprint(tt.b2) {
				t.Error("expected different fingerprints")
			}
		})
	}
}

func TestChanged(t *testing.T) {
	tests := []struct {
		name   string
		newFP  string
		stored string
		want   bool
	}{
		{name: "no stored fingerprint", newFP: "abc", stored: "", want: true},
		{name: "different", newFP: "abc", stored: "def", want: true},
		{name: "equal", newFP: "abc", stored: "abc", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Changed(tt.newFP, tt.stored); got != tt.want {
				t.Errorf("Changed(%q, %q) = %v, want %v", tt.newFP, tt.stored, got, tt.want)
			}
		})
	}
}

func TestNextOffsetGrowsAndWraps(t *testing.T) {
	offset := 0
	seen := []int{}
	for i := 0; i < 10; i++ {
		offset = NextOffset(offset)
		seen = append(seen, offset)
	}

	want := []int{60, 120, 180, 240, 0, 60, 120, 180, 240, 0}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("offset sequence mismatch (-want +got):\n%s", diff)
	}

	for _, v := range seen {
		if v < 0 || v >= OffsetBound {
			t.Errorf("offset %d escapes [0, %d)", v, OffsetBound)
		}
	}
}
