package security

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// SuffixAlphabet leaves out 0, O, 1, I and l so ids survive being read
// aloud or typed by hand.
const SuffixAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

var typeCodes = []struct {
	code     string
	keywords []string
}{
	{"APP", []string{"appreciation"}},
	{"EXC", []string{"excellence"}},
	{"LED", []string{"leadership"}},
	{"SRV", []string{"service"}},
	{"VOL", []string{"volunteer"}},
	{"MSN", []string{"mission"}},
	{"BAP", []string{"baptism"}},
	{"YTH", []string{"youth"}},
	{"EXD", []string{"dedication"}},
	{"CHR", []string{"choir", "christian"}},
	{"CMP", []string{"completion"}},
	{"REC", []string{"recognition"}},
}

// TypeCode maps a template name to its three letter id segment.
func TypeCode(templateName string) string {
	name := strings.ToLower(templateName)
	for _, tc := range typeCodes {
		for _, kw := range tc.keywords {
			if strings.Contains(name, kw) {
				return tc.code
			}
		}
	}

	var b strings.Builder
	for _, r := range templateName {
		if b.Len() == 3 {
			break
		}
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	for b.Len() < 3 {
		b.WriteByte('X')
	}
	return b.String()
}

// GenerateID builds ORG-YYYY-TYP-NNNN-XX. A sequence <= 0 falls back to the
// clock, which is neither monotonic nor collision free across restarts.
func GenerateID(orgCode, templateName string, sequence int, now time.Time) (string, error) {
	if sequence <= 0 {
		sequence = int(now.UnixMilli() % 10000)
	}
	suffix, err := randomSuffix(2)
	if err != nil {
		return "", err
	}
	org := strings.ToUpper(strings.TrimSpace(orgCode))
	if org == "" {
		org = "FOM"
	}
	return fmt.Sprintf("%s-%d-%s-%04d-%s", org, now.Year(), TypeCode(templateName), sequence, suffix), nil
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random suffix: %w", err)
	}
	for i, b := range buf {
		// 256 is a multiple of the alphabet size, so the modulo is unbiased.
		buf[i] = SuffixAlphabet[int(b)%len(SuffixAlphabet)]
	}
	return string(buf), nil
}
