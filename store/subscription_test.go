package store

import (
	"errors"
	"testing"
	"time"
)

func TestSubscriptionFailDeliversQueuedThenCloses(t *testing.T) {
	sub := newSubscription(nil)
	streamErr := errors.New("stream broken")

	sub.push([]Document{{ID: "a"}})
	sub.fail(streamErr)

	docs := recvSnapshot(t, sub)
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Fatalf("expected queued snapshot delivered before close, got %v", docs)
	}
	assertSnapshotsClosed(t, sub)
	if !errors.Is(sub.Err(), streamErr) {
		t.Errorf("expected terminal error %v, got %v", streamErr, sub.Err())
	}
}

func TestSubscriptionPushAfterFailDropped(t *testing.T) {
	sub := newSubscription(nil)
	sub.fail(errors.New("stream broken"))
	sub.push([]Document{{ID: "late"}})

	assertSnapshotsClosed(t, sub)
	if sub.Err() == nil {
		t.Error("expected terminal error after fail")
	}
}

func TestSubscriptionFailKeepsFirstError(t *testing.T) {
	sub := newSubscription(nil)
	first := errors.New("first failure")
	sub.fail(first)
	sub.fail(errors.New("second failure"))

	assertSnapshotsClosed(t, sub)
	if !errors.Is(sub.Err(), first) {
		t.Errorf("expected first terminal error, got %v", sub.Err())
	}
}

func assertSnapshotsClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case docs, ok := <-sub.Snapshots():
		if ok {
			t.Fatalf("expected closed snapshot channel, got %v", docs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot channel to close")
	}
}
