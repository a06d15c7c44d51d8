package processor

import (
	"strings"
	"unicode"
)

// Part is either literal text or a placeholder token.
type Part struct {
	Literal string
	Token   string
}

func (p Part) IsToken() bool { return p.Token != "" }

// Scan splits content into literal text and {{name}} / {name} tokens in a
// single pass. Double braces are tried first at every position.
func Scan(content string) []Part {
	var parts []Part
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, Part{Literal: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(content) {
		open := strings.IndexByte(content[i:], '{')
		if open < 0 {
			lit.WriteString(content[i:])
			break
		}
		lit.WriteString(content[i : i+open])
		i += open

		if name, width, ok := matchToken(content[i:]); ok {
			flush()
			parts = append(parts, Part{Token: name})
			i += width
			continue
		}

		lit.WriteByte('{')
		i++
	}
	flush()

	return parts
}

// matchToken reports the token at the start of s and the number of bytes it
// spans.
func matchToken(s string) (string, int, bool) {
	if strings.HasPrefix(s, "{{") {
		if end := strings.Index(s[2:], "}}"); end >= 0 {
			if name := strings.TrimSpace(s[2 : 2+end]); validName(name) {
				return name, end + 4, true
			}
		}
	}
	if end := strings.IndexByte(s[1:], '}'); end >= 0 {
		if name := strings.TrimSpace(s[1 : 1+end]); validName(name) {
			return name, end + 2, true
		}
	}
	return "", 0, false
}

func validName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, r := range name {
		switch {
		case unicode.IsLetter(r), r == '_':
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.' || r == ' '):
		default:
			return false
		}
	}
	return true
}

// HasToken reports whether content still contains a placeholder token.
func HasToken(content string) bool {
	for _, p := range Scan(content) {
		if p.IsToken() {
			return true
		}
	}
	return false
}
