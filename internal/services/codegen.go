// Package services – CodeGenerator
//
// Referral codes are 8 characters drawn from [A-Z0-9]. Randomness comes from
// crypto-random v4 UUIDs; bytes that would bias the modulo are skipped.
package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/width"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/fallfest-referrals/internal/repo"
)

const (
	// CodeLength is the number of characters in a referral code.
	CodeLength = 8

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// largest multiple of len(codeAlphabet) that fits in a byte
	codeByteLimit = 252

	defaultCodeAttempts = 10
)

// CodeGenerator mints referral codes that no participant holds yet.
type CodeGenerator struct {
	DB          *gorm.DB
	MaxAttempts int

	draw   func() (string, error)
	exists func(ctx context.Context, db *gorm.DB, code string) (bool, error)
}

// NewCodeGenerator returns a generator checking candidates against db.
func NewCodeGenerator(db *gorm.DB, maxAttempts int) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = defaultCodeAttempts
	}
	return &CodeGenerator{
		DB:          db,
		MaxAttempts: maxAttempts,
		draw:        RandomCode,
		exists:      repo.ReferralCodeExists,
	}
}

// Generate returns a code not currently held by any participant. Nothing is
// persisted; uniqueness is finally enforced by the unique index at insert.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	return g.generate(ctx, g.DB)
}

func (g *CodeGenerator) generate(ctx context.Context, db *gorm.DB) (string, error) {
	tr := otel.Tracer("services/CodeGenerator")
	ctx, span := tr.Start(ctx, "Generate")
	defer span.End()

	draw, exists := g.draw, g.exists
	if draw == nil {
		draw = RandomCode
	}
	if exists == nil {
		exists = repo.ReferralCodeExists
	}
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = defaultCodeAttempts
	}

	for i := 1; i <= attempts; i++ {
		code, err := draw()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, db, code)
		if err != nil {
			return "", storeErr(err)
		}
		if !taken {
			span.SetAttributes(attribute.Int("code.attempts", i))
			return code, nil
		}
		span.AddEvent("collision", trace.WithAttributes(attribute.Int("attempt", i)))
	}
	codeCollisions.Inc()
	return "", ErrCollision
}

// RandomCode draws one candidate code.
func RandomCode() (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)
	for b.Len() < CodeLength {
		u, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		for i, c := range u {
			// bytes 6 and 8 carry the version and variant bits
			if i == 6 || i == 8 || c >= codeByteLimit {
				continue
			}
			b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
			if b.Len() == CodeLength {
				break
			}
		}
	}
	return b.String(), nil
}

// NormalizeCode trims a submitted code and folds full-width characters to
// their ASCII forms. Case is preserved.
func NormalizeCode(s string) string {
	return strings.TrimSpace(width.Fold.String(strings.TrimSpace(s)))
}

// IsCodeShaped reports whether s looks like a generated referral code.
func IsCodeShaped(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(codeAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
