package password

import (
	"strings"
	"testing"
)

func TestHashVerify_RoundTrip(t *testing.T) {
	phc, err := Hash(Default, "s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$") {
		t.Fatalf("unexpected PHC prefix: %s", phc)
	}
	if !Verify("s3cret-pass", phc) {
		t.Fatal("expected verify to succeed")
	}
	if Verify("wrong-pass", phc) {
		t.Fatal("expected verify to fail for wrong password")
	}
}

func TestHash_EmptyPassword(t *testing.T) {
	if _, err := Hash(Default, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	for _, phc := range []string{
		"",
		"$argon2id$v=18$m=1,t=1,p=1$aaaa$bbbb",
		"$bcrypt$whatever",
		"$argon2id$v=19$m=x,t=1,p=1$aaaa$bbbb",
		"$argon2id$v=19$m=65536,t=3,p=1$!!$bbbb",
	} {
		if Verify("pwd", phc) {
			t.Fatalf("expected verify to fail for %q", phc)
		}
	}
}
