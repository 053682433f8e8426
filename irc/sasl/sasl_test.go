package sasl

import "testing"

type stubLookup struct {
	hashes map[string]string
	certs  map[string]string
}

func (s *stubLookup) PasswordHash(account string) (string, bool) {
	h, ok := s.hashes[account]
	return h, ok
}

func (s *stubLookup) VerifyPassword(hash, plaintext string) bool {
	return hash == "hash:"+plaintext
}

func (s *stubLookup) ScramVerifier(account string) ([]byte, []byte, []byte, int, bool) {
	return nil, nil, nil, 0, false
}

func (s *stubLookup) AccountForCertFP(fp string) (string, bool) {
	acc, ok := s.certs[fp]
	return acc, ok
}

func TestPlainSuccessAndFailure(t *testing.T) {
	lookup := &stubLookup{hashes: map[string]string{"alice": "hash:correcthorse"}}
	mech := NewPlainMechanism(lookup)

	_, done, res, err := mech.Step([]byte("\x00alice\x00correcthorse"))
	if err != nil || !done || !res.Success || res.Account != "alice" {
		t.Fatalf("expected success, got done=%v res=%+v err=%v", done, res, err)
	}

	mech2 := NewPlainMechanism(lookup)
	_, done, res, err = mech2.Step([]byte("\x00alice\x00wrongpass"))
	if err != nil || !done || res.Success {
		t.Fatalf("expected failure, got %+v err=%v", res, err)
	}
}

func TestExternalUsesCertFingerprint(t *testing.T) {
	lookup := &stubLookup{certs: map[string]string{"deadbeef": "bob"}}
	mech := NewExternalMechanism(lookup, "deadbeef")
	_, done, res, err := mech.Step(nil)
	if err != nil || !done || !res.Success || res.Account != "bob" {
		t.Fatalf("expected success for known fingerprint, got %+v err=%v", res, err)
	}

	mech2 := NewExternalMechanism(lookup, "unknown")
	_, _, res, _ = mech2.Step(nil)
	if res.Success {
		t.Fatal("expected failure for unknown fingerprint")
	}
}

func TestChunkPayloadSplitsLongPayloads(t *testing.T) {
	payload := make([]byte, MaxPayloadLine+10)
	for i := range payload {
		payload[i] = 'A'
	}
	chunks := ChunkPayload(string(payload))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != MaxPayloadLine {
		t.Fatalf("first chunk length = %d, want %d", len(chunks[0]), MaxPayloadLine)
	}
}

func TestAttemptTrackerDisconnectsAfterMax(t *testing.T) {
	tr := NewAttemptTracker(3)
	if tr.RecordFailure() {
		t.Fatal("should not disconnect on first failure")
	}
	if tr.RecordFailure() {
		t.Fatal("should not disconnect on second failure")
	}
	if !tr.RecordFailure() {
		t.Fatal("should disconnect on third failure")
	}
}

func TestDeriveScramVerifierDeterministic(t *testing.T) {
	salt := []byte("fixed-salt")
	sk1, srk1 := DeriveScramVerifier("hunter2", salt, 4096)
	sk2, srk2 := DeriveScramVerifier("hunter2", salt, 4096)
	if string(sk1) != string(sk2) || string(srk1) != string(srk2) {
		t.Fatal("expected deterministic derivation for identical inputs")
	}
}
