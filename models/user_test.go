package models

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	var u User
	if err := u.SetPassword("s3cret-pass"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if u.PasswordHash == "s3cret-pass" {
		t.Fatalf("expected hash, got plain text")
	}
	if !u.CheckPassword("s3cret-pass") {
		t.Fatalf("expected password to match")
	}
	if u.CheckPassword("wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}
