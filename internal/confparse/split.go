package confparse

import (
	"strconv"
	"strings"
	"unicode"
)

// SplitArgs splits s on top-level commas and trims each argument. An
// empty or blank s has no arguments, and a trailing empty argument is
// dropped.
func SplitArgs(s string) []string {
	s = StripComments(s)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'':
			i = skipQuoted(s, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	last := strings.TrimSpace(s[start:])
	if last != "" || len(args) == 0 {
		args = append(args, last)
	}
	return args
}

// JoinArgs is the inverse of SplitArgs for arguments without top-level
// commas.
func JoinArgs(args []string) string {
	return strings.Join(args, ", ")
}

// SplitSpace splits s into whitespace-separated words. Quoted sections do
// not split.
func SplitSpace(s string) []string {
	var words []string
	i := 0
	for i < len(s) {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		for i < len(s) && !isSpace(s[i]) {
			if s[i] == '"' || s[i] == '\'' {
				i = skipQuoted(s, i)
			}
			i++
		}
		words = append(words, s[start:min(i, len(s))])
	}
	return words
}

// Keyword splits a leading keyword off arg. A keyword is an upper-case
// letter followed by upper-case letters, digits or underscores, ended by
// whitespace or the end of arg.
func Keyword(arg string) (keyword, rest string, ok bool) {
	i := 0
	for i < len(arg) {
		c := rune(arg[i])
		if unicode.IsUpper(c) || (i > 0 && (unicode.IsDigit(c) || c == '_')) {
			i++
			continue
		}
		break
	}
	if i == 0 || (i < len(arg) && !isSpace(arg[i])) {
		return "", arg, false
	}
	return arg[:i], strings.TrimSpace(arg[i:]), true
}

// Unquote removes one level of double or single quotes. Double-quoted
// strings understand Go escapes; single-quoted strings are literal. Text
// outside quotes is kept as is, so `a"b c"d` becomes "ab cd".
func Unquote(s string) string {
	if !strings.ContainsAny(s, `"'`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '"' && c != '\'' {
			b.WriteByte(c)
			continue
		}
		end := skipQuoted(s, i)
		if end >= len(s) {
			b.WriteString(s[i+1:])
			break
		}
		body := s[i+1 : end]
		if c == '"' {
			if u, err := strconv.Unquote(`"` + body + `"`); err == nil {
				body = u
			}
		}
		b.WriteString(body)
		i = end
	}
	return b.String()
}

// Quote returns s in double quotes when it would not survive SplitArgs
// and Unquote unchanged.
func Quote(s string) string {
	if s != "" && !strings.ContainsAny(s, ",\"'()[]{}/ \t\n") {
		return s
	}
	return strconv.Quote(s)
}

// StripComments removes // and /* */ comments outside quotes.
func StripComments(s string) string {
	if !strings.Contains(s, "/") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			end := min(skipQuoted(s, i), len(s)-1)
			b.WriteString(s[i : end+1])
			i = end
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			b.WriteByte(' ')
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// skipQuoted returns the index of the quote closing the string opened at
// s[i], or len(s) when it is unterminated.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if q == '"' {
				j++
			}
		case q:
			return j
		}
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
