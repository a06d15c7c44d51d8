package security

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FOM-CERTS/internal/models"
)

const (
	watermarkPrefix = "FOM-"
	noSignature     = "no-sig"

	// GenesisHash is the previous hash of an organization's first chain link.
	GenesisHash = "0"
)

var ErrMissingSecret = errors.New("security: signing secret is not configured")

type feature struct {
	signature bool
	watermark bool
	chain     bool
}

var levelFeatures = map[models.SecurityLevel]feature{
	models.LevelBasic:    {},
	models.LevelStandard: {signature: true, watermark: true},
	models.LevelHigh:     {signature: true, watermark: true, chain: true},
}

var levelKeywords = []struct {
	level    models.SecurityLevel
	keywords []string
}{
	{models.LevelHigh, []string{"pastor", "leadership", "baptism"}},
	{models.LevelStandard, []string{"excellence", "achievement", "mission"}},
}

// Input carries the certificate identity fields covered by the package.
type Input struct {
	CertificateID string
	RecipientName string
	TemplateName  string
	IssueDate     time.Time
	IssuerName    string
	PreviousHash  string
}

type Generator struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

func NewGenerator(secret, baseURL string) (*Generator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Generator{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// LevelFor picks the security level from template name keywords. HIGH
// keywords are checked before STANDARD ones.
func LevelFor(templateName string) models.SecurityLevel {
	name := strings.ToLower(templateName)
	for _, rule := range levelKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.level
			}
		}
	}
	return models.LevelBasic
}

// FormatIssueDate is the canonical date form used in signed strings.
func FormatIssueDate(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func (g *Generator) Generate(in Input) models.SecurityPackage {
	level := LevelFor(in.TemplateName)
	features := levelFeatures[level]
	now := g.now()

	pkg := models.SecurityPackage{
		Level:     level,
		Timestamp: now,
	}

	if features.signature {
		pkg.Signature = g.Sign(in)
	}
	if features.watermark {
		pkg.Watermark = g.Watermark(in.CertificateID)
	}
	if features.chain {
		prev := in.PreviousHash
		if prev == "" {
			prev = GenesisHash
		}
		pkg.PreviousHash = prev
		pkg.BlockchainHash = ChainHash(prev, in)
	}
	pkg.VerificationURL = g.VerificationURL(in.CertificateID, pkg.Signature, now)

	return pkg
}

func signingString(in Input) string {
	return strings.Join([]string{
		in.CertificateID,
		in.RecipientName,
		in.TemplateName,
		FormatIssueDate(in.IssueDate),
		in.IssuerName,
	}, "|")
}

func (g *Generator) Sign(in Input) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(signingString(in)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the MAC for in and compares it in constant time.
func (g *Generator) VerifySignature(in Input, signature string) bool {
	if signature == "" {
		return false
	}
	expected, err := hex.DecodeString(g.Sign(in))
	if err != nil {
		return false
	}
	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, given)
}

// Watermark derives the watermark text from the certificate id and secret.
// Its placement is random on purpose and is not reproducible.
func (g *Generator) Watermark(certificateID string) *models.Watermark {
	sum := md5.Sum(append([]byte(certificateID), g.secret...))
	digest := hex.EncodeToString(sum[:])

	return &models.Watermark{
		Text: watermarkPrefix + strings.ToUpper(digest[:8]),
		Hash: digest,
		Position: models.WatermarkPosition{
			X:        300 + rand.Float64()*200,
			Y:        250 + rand.Float64()*100,
			Rotation: -15 + rand.Float64()*30,
		},
	}
}

// ChainHash links a certificate to its predecessor in the organization's
// hash chain.
func ChainHash(previousHash string, in Input) string {
	if previousHash == "" {
		previousHash = GenesisHash
	}
	payload := strings.Join([]string{
		previousHash,
		in.CertificateID,
		in.RecipientName,
		in.TemplateName,
		FormatIssueDate(in.IssueDate),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func (g *Generator) VerificationURL(certificateID, signature string, issuedAt time.Time) string {
	if signature == "" {
		signature = noSignature
	}
	q := url.Values{}
	q.Set("id", certificateID)
	q.Set("sig", signature)
	q.Set("t", strconv.FormatInt(issuedAt.UnixMilli(), 10))
	return fmt.Sprintf("%s/verify-certificate?%s", g.baseURL, q.Encode())
}

// IsNoSignature reports whether sig is the placeholder used in verification
// URLs of unsigned certificates.
func IsNoSignature(sig string) bool {
	return sig == "" || sig == noSignature
}
