package codec

import (
	"bytes"
	"crypto/rand"
	"testing"
)

const (
	testFragmentLen = 64
	testDataShards  = 4
	testParity      = 2
)

func randomObject(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, testFragmentLen*testDataShards)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return buf
}

func TestEncodeDecodeRoundTripWithAllDataShards(t *testing.T) {
	object := randomObject(t)
	enc, err := NewEncoder(object, testFragmentLen, testDataShards, testParity)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	dec := NewDecoder(testFragmentLen, testDataShards, testParity)
	var complete bool
	for i := uint32(0); i < testDataShards; i++ {
		fragment, err := enc.Encode(i)
		if err != nil {
			t.Fatalf("Encode(%d): %v", i, err)
		}
		complete, err = dec.Feed(i, fragment)
		if err != nil {
			t.Fatalf("Feed(%d): %v", i, err)
		}
	}
	if !complete {
		t.Fatal("expected decoder to complete after dataShards fragments")
	}
	recovered, err := dec.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !bytes.Equal(recovered, object) {
		t.Fatal("recovered object does not match original")
	}
}

func TestDecodeRecoversWithMissingDataShards(t *testing.T) {
	object := randomObject(t)
	enc, err := NewEncoder(object, testFragmentLen, testDataShards, testParity)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	// Feed shards [2, 3, 4, 5]: two data shards missing, both parity shards used.
	dec := NewDecoder(testFragmentLen, testDataShards, testParity)
	var complete bool
	for i := uint32(2); i < uint32(testDataShards+testParity); i++ {
		fragment, err := enc.Encode(i)
		if err != nil {
			t.Fatalf("Encode(%d): %v", i, err)
		}
		complete, err = dec.Feed(i, fragment)
		if err != nil {
			t.Fatalf("Feed(%d): %v", i, err)
		}
	}
	if !complete {
		t.Fatal("expected decoder to complete with dataShards worth of mixed shards")
	}
	recovered, err := dec.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !bytes.Equal(recovered, object) {
		t.Fatal("recovered object does not match original")
	}
}

func TestFeedReturnsFalseBeforeEnoughShards(t *testing.T) {
	object := randomObject(t)
	enc, err := NewEncoder(object, testFragmentLen, testDataShards, testParity)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec := NewDecoder(testFragmentLen, testDataShards, testParity)
	fragment, err := enc.Encode(0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	complete, err := dec.Feed(0, fragment)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if complete {
		t.Fatal("decoder should not be complete after a single fragment")
	}
	if _, err := dec.Recover(); err == nil {
		t.Fatal("expected Recover to fail before completion")
	}
}

func TestShardAtAfterReconstructMatchesEncoder(t *testing.T) {
	object := randomObject(t)
	enc, err := NewEncoder(object, testFragmentLen, testDataShards, testParity)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec := NewDecoder(testFragmentLen, testDataShards, testParity)
	for i := uint32(0); i < testDataShards; i++ {
		fragment, err := enc.Encode(i)
		if err != nil {
			t.Fatalf("Encode(%d): %v", i, err)
		}
		if _, err := dec.Feed(i, fragment); err != nil {
			t.Fatalf("Feed(%d): %v", i, err)
		}
	}
	want, err := enc.Encode(testDataShards) // first parity shard
	if err != nil {
		t.Fatalf("Encode(parity): %v", err)
	}
	got, err := dec.ShardAt(testDataShards)
	if err != nil {
		t.Fatalf("ShardAt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("reconstructed parity shard does not match encoder's")
	}
}

func TestNewEncoderRejectsWrongLength(t *testing.T) {
	if _, err := NewEncoder(make([]byte, 3), testFragmentLen, testDataShards, testParity); err == nil {
		t.Fatal("expected error for mismatched buffer length")
	}
}
