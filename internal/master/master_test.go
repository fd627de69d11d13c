package master

import "testing"

func TestVerifyPlaintext(t *testing.T) {
	if !Verify("s3cret", "s3cret") {
		t.Fatalf("expected plaintext match")
	}
	if Verify("s3cret", "wrong") {
		t.Fatalf("unexpected match")
	}
}

func TestVerifyEmpty(t *testing.T) {
	if Verify("", "anything") {
		t.Fatalf("empty configured secret must never verify")
	}
	if Verify("s3cret", "") {
		t.Fatalf("empty supplied secret must never verify")
	}
}

func TestVerifyBcrypt(t *testing.T) {
	hashed, err := Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify(hashed, "s3cret") {
		t.Fatalf("expected bcrypt match")
	}
	if Verify(hashed, "wrong") {
		t.Fatalf("unexpected bcrypt match")
	}
	// The hash itself must not act as the password.
	if Verify(hashed, hashed) {
		t.Fatalf("hash accepted as password")
	}
}
