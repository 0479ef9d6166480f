package inspect

import (
	"errors"
	"testing"

	"github.com/rawblock/inspect-gateway/pkg/models"
)

func TestQueueAdmissionCap(t *testing.T) {
	q := NewQueue(2)

	if _, leader, err := q.Join("100"); err != nil || !leader {
		t.Fatalf("first join: leader=%v err=%v", leader, err)
	}
	if _, leader, err := q.Join("101"); err != nil || !leader {
		t.Fatalf("second join: leader=%v err=%v", leader, err)
	}
	if _, _, err := q.Join("102"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third join = %v, want ErrQueueFull", err)
	}

	// Completing one frees a slot.
	q.Complete("100", nil, nil)
	if _, leader, err := q.Join("102"); err != nil || !leader {
		t.Fatalf("join after completion: leader=%v err=%v", leader, err)
	}
}

func TestQueueJoinsConcurrentSameAsset(t *testing.T) {
	q := NewQueue(10)

	first, leader, err := q.Join("200")
	if err != nil || !leader {
		t.Fatalf("leader join: %v %v", leader, err)
	}
	second, leader, err := q.Join("200")
	if err != nil || leader {
		t.Fatalf("follower join must not lead: leader=%v err=%v", leader, err)
	}
	if first != second {
		t.Fatal("follower got a different flight")
	}
	if q.Depth() != 1 {
		t.Fatalf("depth = %d, joined requests must share one slot", q.Depth())
	}

	want := &models.InspectResponse{ItemInfo: &models.ItemInfo{AssetID: "200"}}
	q.Complete("200", want, nil)

	<-second.Done
	resp, err := second.Outcome()
	if err != nil || resp != want {
		t.Fatalf("follower outcome = %v, %v", resp, err)
	}
	if q.Depth() != 0 {
		t.Fatalf("depth after completion = %d", q.Depth())
	}
}

func TestQueueDepthCallback(t *testing.T) {
	q := NewQueue(5)
	var seen []int
	q.OnDepthChange(func(depth int) { seen = append(seen, depth) })

	q.Join("1")
	q.Join("2")
	q.Complete("1", nil, nil)

	want := []int{1, 2, 1}
	if len(seen) != len(want) {
		t.Fatalf("depth callbacks = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("depth callbacks = %v, want %v", seen, want)
		}
	}
}

func TestQueueCompleteUnknownAssetIsNoop(t *testing.T) {
	q := NewQueue(1)
	q.Complete("999", nil, errors.New("nothing was flying"))
	if q.Depth() != 0 {
		t.Fatalf("depth = %d", q.Depth())
	}
}
