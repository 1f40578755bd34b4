// SPDX-License-Identifier: MPL-2.0

package console

const (
	quoteChar = '"'
	spaceChar = ' '
)

// Tokenize splits one line into at most maxTokens tokens of at most maxLen
// bytes each. Extra tokens and extra bytes are dropped.
//
// Rules, applied left to right:
//   - a double quote opens a quoted run without adding to the token; the
//     matching quote commits the token, even when it is empty;
//   - spaces inside quotes are literal;
//   - a space outside quotes commits the token unless the previous byte was a
//     space or a closing quote, so runs of separators never yield empty tokens;
//   - leading spaces are skipped;
//   - the token still open at the end of the line is committed. A quote left
//     open at the end of the line is closed implicitly.
func Tokenize(line []byte, maxTokens, maxLen int) []string {
	if maxTokens <= 0 {
		return nil
	}

	tokens := make([]string, 0, min(maxTokens, 4))
	cur := make([]byte, 0, min(maxLen, len(line)))
	inQuote := false

	commit := func() {
		if len(tokens) < maxTokens {
			tokens = append(tokens, string(cur))
		}
		cur = cur[:0]
	}

	for i, c := range line {
		switch {
		case c == quoteChar:
			if inQuote {
				inQuote = false
				commit()
			} else {
				inQuote = true
			}
		case c == spaceChar && !inQuote:
			if i == 0 || line[i-1] == spaceChar || line[i-1] == quoteChar {
				continue
			}
			commit()
		default:
			if len(cur) < maxLen {
				cur = append(cur, c)
			}
		}
	}

	if inQuote || len(cur) > 0 {
		commit()
	}
	return tokens
}
