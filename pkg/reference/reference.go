// Package reference mints and validates payment references of the form
// BK_<unix-ms>_<12 lowercase hex>. The format is wire-visible: the verify
// endpoint rejects anything that does not match Pattern.
package reference

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/zoobzio/clockz"

	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
)

const (
	Prefix = "BK"
	// MaxLength bounds what the verifier will accept before touching the gateway.
	MaxLength = 64

	entropyBytes = 16
	suffixLen    = 12
)

// Pattern is the verification-side grammar. Generated references always carry a
// 12 character suffix; the verifier only requires a non-empty hex suffix.
var Pattern = regexp.MustCompile(`^BK_\d+_[a-f0-9]+$`)

// Generator mints references from a clock and an entropy source.
type Generator struct {
	clock   clockz.Clock
	entropy io.Reader
}

// NewGenerator returns a generator backed by crypto/rand. Nil arguments fall back to
// clockz.RealClock and crypto/rand.Reader.
func NewGenerator(clock clockz.Clock, entropy io.Reader) *Generator {
	if clock == nil {
		clock = clockz.RealClock
	}
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Generator{clock: clock, entropy: entropy}
}

var defaultGenerator = NewGenerator(nil, nil)

// New mints a reference using the default generator.
func New() string {
	return defaultGenerator.New()
}

// New mints a reference. A failing entropy source is unrecoverable and panics.
func (g *Generator) New() string {
	buf := make([]byte, entropyBytes)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		panic(fmt.Sprintf("reference: read entropy: %v", err))
	}
	suffix := hex.EncodeToString(buf)[:suffixLen]
	return Prefix + "_" + strconv.FormatInt(g.clock.Now().UnixMilli(), 10) + "_" + suffix
}

// Validate rejects malformed references with a validation error.
func Validate(ref string) error {
	if ref == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if len(ref) > MaxLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference too long").
			WithDetails(map[string]any{"max_length": MaxLength})
	}
	if !Pattern.MatchString(ref) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid reference format")
	}
	return nil
}

// IsValid is the boolean form of Validate.
func IsValid(ref string) bool {
	return Validate(ref) == nil
}
