package command

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// leadingArgs reads n whitespace-separated arguments from the start of s and
// returns them together with the free text that follows. The free text is
// everything after exactly one separating whitespace character, kept
// verbatim. hasText is false when s ends right after the last argument.
func leadingArgs(s string, n int) (args []string, text string, hasText, ok bool) {
	args = make([]string, 0, n)
	for len(args) < n {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			return args, "", false, false
		}
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			args = append(args, s)
			s = ""
			break
		}
		args = append(args, s[:end])
		s = s[end:]
	}
	if len(args) < n {
		return args, "", false, false
	}
	if s == "" {
		return args, "", false, true
	}
	_, size := utf8.DecodeRuneInString(s)
	return args, s[size:], true, true
}
