package reference

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
)

var generatedPattern = regexp.MustCompile(`^BK_\d+_[a-f0-9]{12}$`)

func TestNewMatchesFormatAndIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		ref := New()
		if !generatedPattern.MatchString(ref) {
			t.Fatalf("reference %q does not match %s", ref, generatedPattern)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q after %d generations", ref, i)
		}
		seen[ref] = struct{}{}
	}
}

func TestGeneratorUsesClockAndFirstSixEntropyBytes(t *testing.T) {
	now := time.UnixMilli(1717171717171)
	entropy := bytes.NewReader([]byte{
		0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	})
	gen := NewGenerator(clockz.NewFakeClockAt(now), entropy)

	got := gen.New()
	if got != "BK_1717171717171_deadbeef0102" {
		t.Fatalf("unexpected reference %q", got)
	}
}

func TestGeneratorPanicsOnShortEntropy(t *testing.T) {
	gen := NewGenerator(nil, bytes.NewReader([]byte{0x01}))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on short entropy read")
		}
	}()
	gen.New()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		ok   bool
	}{
		{name: "generated", ref: "BK_1717171717171_deadbeef0102", ok: true},
		{name: "short suffix accepted", ref: "BK_1_a", ok: true},
		{name: "empty", ref: ""},
		{name: "uppercase hex", ref: "BK_1717171717171_DEADBEEF0102"},
		{name: "wrong prefix", ref: "PK_1717171717171_deadbeef0102"},
		{name: "missing suffix", ref: "BK_1717171717171_"},
		{name: "proxy abuse", ref: "BK_1_abc/../../transaction/totals"},
		{name: "too long", ref: "BK_1_" + strings.Repeat("a", MaxLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.ref)
			if tt.ok && err != nil {
				t.Fatalf("expected %q to be valid, got %v", tt.ref, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("expected %q to be rejected", tt.ref)
				}
				if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
					t.Fatalf("expected validation code, got %v", err)
				}
			}
			if IsValid(tt.ref) != tt.ok {
				t.Fatalf("IsValid(%q) disagrees with Validate", tt.ref)
			}
		})
	}
}
