package containerengine

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestAllocatePortReturnsFixedWhenSet(t *testing.T) {
	port, err := allocatePort(9999)
	if err != nil {
		t.Fatalf("allocatePort: %v", err)
	}
	if port != 9999 {
		t.Fatalf("got %d, want 9999", port)
	}
}

func TestAllocatePortPicksEphemeral(t *testing.T) {
	port, err := allocatePort(0)
	if err != nil {
		t.Fatalf("allocatePort: %v", err)
	}
	if port == 0 {
		t.Fatal("expected a non-zero ephemeral port")
	}
}

func TestProbeBothLiveSucceedsOnceBothListening(t *testing.T) {
	l1, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l1.Close()
	l2, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := probeBothLive(ctx, l1.Addr().String(), l2.Addr().String()); err != nil {
		t.Fatalf("probeBothLive: %v", err)
	}
}

func TestProbeBothLiveFailsWhenNothingListens(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := probeBothLive(ctx, "127.0.0.1:1"); err == nil {
		t.Fatal("expected probe to fail against a closed port")
	}
}
