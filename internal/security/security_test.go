package security

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"FOM-CERTS/internal/models"
)

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator("test-secret", "https://certs.example.org/")
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	g.now = func() time.Time { return time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC) }
	return g
}

func sampleInput(templateName string) Input {
	return Input{
		CertificateID: "FOM-2025-APP-0001-K7",
		RecipientName: "Jane Doe",
		TemplateName:  templateName,
		IssueDate:     time.Date(2025, 3, 9, 9, 30, 0, 0, time.UTC),
		IssuerName:    "Pastor John",
	}
}

func TestNewGenerator_RejectsEmptySecret(t *testing.T) {
	for _, secret := range []string{"", "   "} {
		if _, err := NewGenerator(secret, "https://x"); err != ErrMissingSecret {
			t.Fatalf("NewGenerator(%q): got %v, want ErrMissingSecret", secret, err)
		}
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name string
		want models.SecurityLevel
	}{
		{"Certificate of Appreciation", models.LevelBasic},
		{"Pastor Ordination", models.LevelHigh},
		{"Leadership Excellence Award", models.LevelHigh},
		{"baptism certificate", models.LevelHigh},
		{"Award of Excellence", models.LevelStandard},
		{"Achievement Card", models.LevelStandard},
		{"Mission Trip", models.LevelStandard},
		{"Graduation Card", models.LevelBasic},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.name); got != tt.want {
			t.Errorf("LevelFor(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestGenerate_BasicLevel(t *testing.T) {
	g := testGenerator(t)
	pkg := g.Generate(sampleInput("Certificate of Appreciation"))

	if pkg.Level != models.LevelBasic {
		t.Fatalf("level = %s, want BASIC", pkg.Level)
	}
	if pkg.Signature != "" || pkg.Watermark != nil || pkg.BlockchainHash != "" {
		t.Fatalf("BASIC package carries extra fields: %+v", pkg)
	}
	if !strings.Contains(pkg.VerificationURL, "id=FOM-2025-APP-0001-K7") {
		t.Fatalf("verification url %q does not carry the id", pkg.VerificationURL)
	}
	if !strings.Contains(pkg.VerificationURL, "sig=no-sig") {
		t.Fatalf("verification url %q should use no-sig", pkg.VerificationURL)
	}
}

func TestGenerate_HighLevelPopulatesEverything(t *testing.T) {
	g := testGenerator(t)
	pkg := g.Generate(sampleInput("Pastor Ordination"))

	if pkg.Signature == "" || pkg.Watermark == nil || pkg.BlockchainHash == "" || pkg.VerificationURL == "" {
		t.Fatalf("HIGH package incomplete: %+v", pkg)
	}
	if pkg.PreviousHash != "0" {
		t.Fatalf("first chain link previous hash = %q, want 0", pkg.PreviousHash)
	}

	u, err := url.Parse(pkg.VerificationURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Path != "/verify-certificate" {
		t.Fatalf("path = %q", u.Path)
	}
	if got := u.Query().Get("sig"); got != pkg.Signature {
		t.Fatalf("sig = %q, want %q", got, pkg.Signature)
	}
	if got := u.Query().Get("t"); got != "1741514400000" {
		t.Fatalf("t = %q", got)
	}
}

func TestGenerate_StandardHasNoChain(t *testing.T) {
	g := testGenerator(t)
	pkg := g.Generate(sampleInput("Award of Excellence"))
	if pkg.Signature == "" || pkg.Watermark == nil {
		t.Fatalf("STANDARD package missing signature or watermark: %+v", pkg)
	}
	if pkg.BlockchainHash != "" {
		t.Fatalf("STANDARD package should not carry a chain hash")
	}
}

func TestChainHash(t *testing.T) {
	in := sampleInput("Pastor Ordination")
	a := ChainHash("abc", in)
	if a != ChainHash("abc", in) {
		t.Fatalf("chain hash is not deterministic")
	}
	if a == ChainHash("abd", in) {
		t.Fatalf("chain hash ignores the previous hash")
	}
	if ChainHash("", in) != ChainHash("0", in) {
		t.Fatalf("empty previous hash should default to 0")
	}

	tampered := in
	tampered.RecipientName = "Jane Doe."
	if ChainHash("abc", tampered) == a {
		t.Fatalf("chain hash ignores the recipient")
	}
}

func TestSignature_TamperDetection(t *testing.T) {
	g := testGenerator(t)
	in := sampleInput("Pastor Ordination")
	sig := g.Sign(in)

	if !g.VerifySignature(in, sig) {
		t.Fatalf("signature does not verify")
	}

	mutations := map[string]func(*Input){
		"id":        func(i *Input) { i.CertificateID += "X" },
		"recipient": func(i *Input) { i.RecipientName = "Jane Dae" },
		"template":  func(i *Input) { i.TemplateName = "Pastor Ordinatio" },
		"issueDate": func(i *Input) { i.IssueDate = i.IssueDate.Add(time.Second) },
		"issuer":    func(i *Input) { i.IssuerName = "" },
	}
	for name, mutate := range mutations {
		m := in
		mutate(&m)
		if g.Sign(m) == sig {
			t.Errorf("%s: signature unchanged after mutation", name)
		}
		if g.VerifySignature(m, sig) {
			t.Errorf("%s: tampered input verifies", name)
		}
	}

	if g.VerifySignature(in, "") || g.VerifySignature(in, "not-hex") {
		t.Fatalf("empty or malformed signatures must not verify")
	}

	other, _ := NewGenerator("other-secret", "https://x")
	if other.VerifySignature(in, sig) {
		t.Fatalf("signature verifies under a different key")
	}
}

func TestWatermark(t *testing.T) {
	g := testGenerator(t)
	textRe := regexp.MustCompile(`^FOM-[0-9A-F]{8}$`)

	first := g.Watermark("FOM-2025-EXC-0002-AB")
	for i := 0; i < 200; i++ {
		wm := g.Watermark("FOM-2025-EXC-0002-AB")
		if wm.Text != first.Text || wm.Hash != first.Hash {
			t.Fatalf("watermark text must be stable for an id")
		}
		if !textRe.MatchString(wm.Text) {
			t.Fatalf("watermark text %q has wrong shape", wm.Text)
		}
		p := wm.Position
		if p.X < 300 || p.X >= 500 || p.Y < 250 || p.Y >= 350 || p.Rotation < -15 || p.Rotation >= 15 {
			t.Fatalf("watermark position out of range: %+v", p)
		}
	}
	if !strings.HasPrefix(strings.ToUpper(first.Hash), strings.TrimPrefix(first.Text, "FOM-")) {
		t.Fatalf("watermark text is not the hash prefix")
	}
}

func TestTypeCode(t *testing.T) {
	tests := map[string]string{
		"Certificate of Appreciation":     "APP",
		"Excellence in Leadership":        "EXC",
		"Volunteer Service Award":         "SRV",
		"Youth Camp Completion":           "YTH",
		"Baby Dedication":                 "EXD",
		"Choir Recognition":               "CHR",
		"Graduation Card":                 "GRA",
		"Go":                              "GOX",
		"42":                              "XXX",
		"Certificate of Recognition 2025": "REC",
	}
	for name, want := range tests {
		if got := TypeCode(name); got != want {
			t.Errorf("TypeCode(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestGenerateID(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	idRe := regexp.MustCompile(`^FOM-2025-APP-0001-[` + SuffixAlphabet + `]{2}$`)

	for i := 0; i < 100; i++ {
		id, err := GenerateID("fom", "Certificate of Appreciation", 1, now)
		if err != nil {
			t.Fatalf("GenerateID: %v", err)
		}
		if !idRe.MatchString(id) {
			t.Fatalf("id %q has wrong shape", id)
		}
	}

	id, err := GenerateID("ABC", "Service Award", 0, now)
	if err != nil {
		t.Fatalf("GenerateID: %v", err)
	}
	want := fmt.Sprintf("ABC-2025-SRV-%04d-", now.UnixMilli()%10000)
	if !strings.HasPrefix(id, want) {
		t.Fatalf("fallback sequence id = %q, want prefix %q", id, want)
	}
}

func TestSuffixAlphabet(t *testing.T) {
	if len(SuffixAlphabet) != 32 {
		t.Fatalf("alphabet has %d characters, want 32", len(SuffixAlphabet))
	}
	if strings.ContainsAny(SuffixAlphabet, "0O1Il") {
		t.Fatalf("alphabet contains ambiguous characters")
	}
}
