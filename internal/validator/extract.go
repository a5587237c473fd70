package validator

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var errNoJSON = errors.New("validator: no JSON object found in response")

// ExtractJSON finds the first balanced JSON object in raw, tolerating
// leading/trailing prose and fenced code blocks, then applies a bounded set
// of repairs (max 2 passes) until gjson can parse it as a valid object.
func ExtractJSON(raw string) (string, error) {
	candidate := firstBalancedObject(stripFences(raw))
	if candidate == "" {
		return "", errNoJSON
	}
	if gjson.Valid(candidate) {
		return candidate, nil
	}
	for attempt := 0; attempt < 2; attempt++ {
		candidate = repair(candidate)
		if gjson.Valid(candidate) {
			return candidate, nil
		}
	}
	return "", errNoJSON
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "```")
	parts := strings.Split(s, "```")
	if len(parts) >= 3 {
		return parts[1]
	}
	return s
}

// firstBalancedObject scans for the first top-level {...} span, tolerating
// surrounding prose.
func firstBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// unbalanced at EOF; return what we have so repair() can close it.
	return s[start:]
}

// repair applies the bounded fix-up set: strip trailing commas, close
// unbalanced brackets at EOF, and normalize smart quotes to straight ones.
func repair(s string) string {
	s = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	).Replace(s)
	s = stripTrailingCommas(s)
	s = closeUnbalanced(s)
	return s
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\t' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the trailing comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closeUnbalanced(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return s
}

// setDefault uses sjson to fill a missing optional field, matching the
// "missing optional fields default" rule without hand-rolling JSON
// re-serialization.
func setDefault(jsonStr, path string, value any) (string, error) {
	return sjson.Set(jsonStr, path, value)
}
