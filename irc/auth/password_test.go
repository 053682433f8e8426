package auth

import "testing"

func TestHashAndVerify(t *testing.T) {
	hash, err := HashWithCost("correcthorsebatterystaple", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify(hash, "correcthorsebatterystaple") {
		t.Fatal("expected correct password to verify")
	}
	if Verify(hash, "wrongpassword") {
		t.Fatal("expected wrong password to fail verification")
	}
}
