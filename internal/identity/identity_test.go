package identity

import "testing"

type greeting struct {
	Text string
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	signed, err := Sign(kp, greeting{Text: "hello"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(signed) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	signed, err := Sign(kp, greeting{Text: "hello"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signed.Value.Text = "tampered"
	if Verify(signed) {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestVerifyRejectsMismatchedPeerID(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate other: %v", err)
	}
	signed, err := Sign(kp, greeting{Text: "hello"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signed.PeerID = other.ID()
	if Verify(signed) {
		t.Fatal("expected mismatched peer id to fail verification")
	}
}

func TestPeerRecordVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	record, err := kp.NewPeerRecord("127.0.0.1:9000")
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	if !record.Verify() {
		t.Fatal("expected record to verify")
	}
	record.Addr = "10.0.0.1:9000"
	if record.Verify() {
		t.Fatal("expected tampered address to fail verification")
	}
}
