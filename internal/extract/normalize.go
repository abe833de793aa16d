package extract

import (
	"encoding/hex"
	"regexp"
	"strings"
)

var nameSuffixes = map[string]struct{}{
	"jr":   {},
	"jr.":  {},
	"sr":   {},
	"sr.":  {},
	"ii":   {},
	"iii":  {},
	"iv":   {},
	"esq":  {},
	"esq.": {},
}

// SplitName breaks a display name into first and last parts. It handles
// both "Last, First Middle" and "First Middle Last" orders and strips
// trailing generational/professional suffixes whether or not they are
// comma-separated. A single remaining token is treated as a last name.
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}

	if comma := strings.Index(full, ","); comma >= 0 {
		last = strings.TrimSpace(full[:comma])
		rest := stripSuffixes(strings.Fields(full[comma+1:]))
		if len(rest) > 0 {
			first = rest[0]
		}
		return first, strings.TrimSpace(last)
	}

	tokens := stripSuffixes(strings.Fields(full))
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return "", tokens[0]
	default:
		return tokens[0], tokens[len(tokens)-1]
	}
}

func stripSuffixes(tokens []string) []string {
	for len(tokens) > 0 {
		candidate := strings.ToLower(strings.TrimSuffix(tokens[len(tokens)-1], ","))
		if _, ok := nameSuffixes[candidate]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

var phoneCleaner = regexp.MustCompile(`[^0-9+().\-\s]`)

// CleanPhone strips everything but digits and standard separators, then
// collapses interior whitespace.
func CleanPhone(raw string) string {
	cleaned := phoneCleaner.ReplaceAllString(raw, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

var hexOnly = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// DecodeEmail recovers an address from the common fixed-key XOR hex
// obfuscation (first byte is the key, remaining bytes are XORed with it),
// falling back to plain mailto: stripping. Values that look like neither
// pass through trimmed.
func DecodeEmail(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "mailto:")
	if i := strings.IndexAny(raw, "?&"); i >= 0 {
		raw = raw[:i]
	}

	if len(raw) >= 4 && len(raw)%2 == 0 && hexOnly.MatchString(raw) && !strings.Contains(raw, "@") {
		if decoded, ok := decodeXORHex(raw); ok {
			return decoded
		}
	}
	return raw
}

func decodeXORHex(raw string) (string, bool) {
	data, err := hex.DecodeString(raw)
	if err != nil || len(data) < 2 {
		return "", false
	}
	key := data[0]
	out := make([]byte, 0, len(data)-1)
	for _, b := range data[1:] {
		out = append(out, b^key)
	}
	decoded := string(out)
	if !strings.Contains(decoded, "@") {
		return "", false
	}
	return decoded, true
}

var cityLine = regexp.MustCompile(`^(.*?),\s*([A-Za-z][A-Za-z .]{0,30})\s+([A-Za-z0-9][A-Za-z0-9 \-]{2,9})$`)

// SplitAddress recognises a trailing "City, REGION POSTAL" line in a
// multi-line address block.
func SplitAddress(block string) (city, region, postal string, ok bool) {
	lines := strings.Split(block, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		m := cityLine.FindStringSubmatch(line)
		if m == nil {
			return "", "", "", false
		}
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), strings.TrimSpace(m[3]), true
	}
	return "", "", "", false
}
