package partialjson

import "strings"

// Repair closes unterminated strings, literals, and brackets in a
// truncated JSON fragment. It is only used as a last resort when an
// upstream stream ends (e.g. hit the token limit) before a tool call's
// argument buffer ever became valid JSON on its own.
func Repair(text string) string {
	if text == "" {
		return ""
	}

	var openStack []rune
	inString := false
	escaped := false
	lastValidIndex := -1

	for i := 0; i < len(text); i++ {
		c := rune(text[i])

		if escaped {
			escaped = false
			lastValidIndex = i
			continue
		}
		if c == '\\' && inString {
			escaped = true
			lastValidIndex = i
			continue
		}
		if c == '"' {
			inString = !inString
			lastValidIndex = i
			continue
		}
		if inString {
			lastValidIndex = i
			continue
		}

		switch c {
		case '{', '[':
			openStack = append(openStack, c)
			lastValidIndex = i
		case '}':
			if len(openStack) > 0 && openStack[len(openStack)-1] == '{' {
				openStack = openStack[:len(openStack)-1]
				lastValidIndex = i
			}
		case ']':
			if len(openStack) > 0 && openStack[len(openStack)-1] == '[' {
				openStack = openStack[:len(openStack)-1]
				lastValidIndex = i
			}
		case ',', ':', ' ', '\t', '\n', '\r',
			'0', '1', '2', '3', '4', '5', '6', '7', '8', '9',
			'-', '.', 'e', 'E', '+', 't', 'r', 'u', 'f', 'a', 'l', 's', 'n':
			lastValidIndex = i
		}
	}

	if lastValidIndex < 0 {
		return ""
	}

	result := text[:lastValidIndex+1]
	if inString {
		result += "\""
	}
	result = completeLiteral(result)

	for i := len(openStack) - 1; i >= 0; i-- {
		if openStack[i] == '{' {
			result += "}"
		} else {
			result += "]"
		}
	}

	return result
}

func completeLiteral(s string) string {
	i := len(s) - 1
	for i >= 0 && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i--
	}
	if i < 0 {
		return s
	}

	start := i
	for start > 0 && s[start-1] >= 'a' && s[start-1] <= 'z' {
		start--
	}
	if start == i+1 {
		return s
	}

	partial := s[start : i+1]
	switch {
	case strings.HasPrefix("true", partial) && partial != "true":
		return s[:start] + "true"
	case strings.HasPrefix("false", partial) && partial != "false":
		return s[:start] + "false"
	case strings.HasPrefix("null", partial) && partial != "null":
		return s[:start] + "null"
	default:
		return s
	}
}
