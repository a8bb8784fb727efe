package relay

import "strings"

// latexReplacements maps command names the client's KaTeX renderer rejects to
// supported equivalents.
var latexReplacements = map[string]string{
	"bm":      `\boldsymbol`,
	"mathbbm": `\mathbb`,
	"hfill":   `\quad`,
}

// Sanitize rewrites unsupported LaTeX commands in a text fragment.
// Only whole command names are replaced: \bmod stays \bmod. Escaped
// backslashes (\\) are copied through untouched.
func Sanitize(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}

		j := i + 1
		for j < len(s) && isASCIILetter(s[j]) {
			j++
		}
		if j == i+1 {
			// Control symbol such as \\ or \{: copy it whole.
			if j < len(s) {
				j++
			}
			b.WriteString(s[i:j])
			i = j
			continue
		}

		if repl, ok := latexReplacements[s[i+1:j]]; ok {
			b.WriteString(repl)
		} else {
			b.WriteString(s[i:j])
		}
		i = j
	}
	return b.String()
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
