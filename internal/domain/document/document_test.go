package document

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("/docs/a.md", "hello")
	b := Fingerprint("/docs/a.md", "hello")
	if a != b {
		t.Errorf("fingerprint not stable: %q vs %q", a, b)
	}
	if len(a) != FingerprintLength {
		t.Errorf("len = %d, want %d", len(a), FingerprintLength)
	}
}

func TestFingerprint_Known(t *testing.T) {
	// first 16 hex chars of sha256("a.txt:x")
	if got := Fingerprint("a.txt", "x"); got != "f8bbf807a443bc35" {
		t.Errorf("Fingerprint() = %q", got)
	}
}

func TestFingerprint_DependsOnPathAndText(t *testing.T) {
	base := Fingerprint("a.md", "text")
	tests := []struct {
		name       string
		path, text string
	}{
		{"different path", "b.md", "text"},
		{"different text", "a.md", "text2"},
		{"separator shift", "a.md:text", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if Fingerprint(tc.path, tc.text) == base {
				t.Errorf("fingerprint collided with base for %q/%q", tc.path, tc.text)
			}
		})
	}
}

func TestDocument_Fingerprint(t *testing.T) {
	doc := New("notes/a.txt", "content", nil)
	if doc.Fingerprint() != Fingerprint("notes/a.txt", "content") {
		t.Error("method and function disagree")
	}
}

func TestNew_CopiesExtra(t *testing.T) {
	extra := map[string]string{"file_type": "text/plain"}
	doc := New("a.txt", "x", extra)
	extra["file_type"] = "changed"

	if doc.Extra["file_type"] != "text/plain" {
		t.Errorf("Extra aliased caller map: %v", doc.Extra)
	}
}
