package matrixkernel

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := Matrix{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}
	encoded := Encode(m)
	want := "1,2,3|4,5,6|7,8,9|"
	if encoded != want {
		t.Fatalf("Encode: got %q want %q", encoded, want)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !m.Equal(decoded) {
		t.Fatalf("round trip mismatch: got %v want %v", decoded, m)
	}
}

func TestDecodeRejectsNonSquare(t *testing.T) {
	if _, err := Decode("1,2|3,4,5|"); err == nil {
		t.Fatal("expected error for non-square matrix")
	}
}

func TestFingerprintStableAndDistinguishing(t *testing.T) {
	a := Matrix{{1, 2}, {3, 4}}
	b := Matrix{{1, 2}, {3, 5}}
	if Fingerprint(a) != Fingerprint(a) {
		t.Fatal("fingerprint must be stable for the same matrix")
	}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("fingerprint should distinguish different matrices")
	}
}
