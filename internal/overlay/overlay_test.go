package overlay

import (
	"sort"
	"testing"

	"boson/internal/codec"
	"boson/internal/identity"
)

func mustKeyPair(t *testing.T) identity.KeyPair {
	t.Helper()
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func TestMulticastExcludesSelfAndUnknownPeers(t *testing.T) {
	self := mustKeyPair(t)
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	unknown := mustKeyPair(t)

	sent := map[string]bool{}
	closest := func(codec.Chunk, int) []identity.PeerId {
		return []identity.PeerId{self.ID(), a.ID(), b.ID(), unknown.ID()}
	}
	send := func(addr string, _ []byte) error {
		sent[addr] = true
		return nil
	}

	client, err := NewStaticClient(self.ID(), 8, closest, send)
	if err != nil {
		t.Fatalf("NewStaticClient: %v", err)
	}
	recA, _ := a.NewPeerRecord("10.0.0.1:9000")
	recB, _ := b.NewPeerRecord("10.0.0.2:9000")
	client.Learn(recA)
	client.Learn(recB)

	if err := client.Multicast(codec.Chunk{}, 4, []byte("invite")); err != nil {
		t.Fatalf("Multicast: %v", err)
	}

	var got []string
	for addr := range sent {
		got = append(got, addr)
	}
	sort.Strings(got)
	want := []string{"10.0.0.1:9000", "10.0.0.2:9000"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected multicast targets: %v", got)
	}
}

func TestUnicastToUnknownPeerFails(t *testing.T) {
	self := mustKeyPair(t)
	client, err := NewStaticClient(self.ID(), 8, func(codec.Chunk, int) []identity.PeerId { return nil }, func(string, []byte) error { return nil })
	if err != nil {
		t.Fatalf("NewStaticClient: %v", err)
	}
	other := mustKeyPair(t)
	if err := client.Unicast(other.ID(), []byte("x")); err == nil {
		t.Fatal("expected unicast to unknown peer to fail")
	}
}
