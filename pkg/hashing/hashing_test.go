package hashing

import "testing"

func TestHashTextDeterministic(t *testing.T) {
	a := HashText("Halt system X")
	b := HashText("Halt system X")
	if a != b {
		t.Errorf("expected identical hash across calls, got %x and %x", a, b)
	}
}

func TestHashTextDiffers(t *testing.T) {
	a := HashText("Halt system X")
	b := HashText("Halt system Y")
	if a == b {
		t.Errorf("expected distinct hashes for distinct inputs")
	}
}

func TestVerify(t *testing.T) {
	content := []byte("petition body")
	digest := Hash(content)

	ok, err := Verify(content, digest[:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected verify to succeed for matching content")
	}

	ok, err = Verify([]byte("tampered"), digest[:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected verify to fail for tampered content")
	}
}

func TestVerifyWrongLength(t *testing.T) {
	_, err := Verify([]byte("x"), []byte{1, 2, 3})
	if err == nil {
		t.Error("expected error for wrong-length expected digest")
	}
}
