package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"personasim/internal/types"
)

// Unassigned names the synthetic parent for themes that appear before any
// dimension and codes that appear before any theme.
const Unassigned = "Unassigned"

// separator follows a Dimension/Theme/Code keyword: "Theme: x", "Theme 2. x", "Theme 2 - x".
const separator = `(?:\s*:|\.\s|\s+[-–])\s*`

var (
	dimensionLine = regexp.MustCompile(`(?i)^(?:aggregate\s+)?dimension(?:\s*\d+)?` + separator + `(.+)$`)
	themeLine     = regexp.MustCompile(`(?i)^(?:second[- ]order\s+)?theme(?:\s*\d+(?:\.\d+)*)?` + separator + `(.+)$`)
	codeLine      = regexp.MustCompile(`(?i)^(?:first[- ]order\s+)?code(?:\s*\d+(?:\.\d+)*)?` + separator + `(.+)$`)
	codesHeader   = regexp.MustCompile(`(?i)^(?:first[- ]order\s+)?codes?\s*:?\s*$`)
	quoteLine     = regexp.MustCompile(`(?i)^(?:representative\s+)?quote\s*:\s*(.+)$`)
	listNumber    = regexp.MustCompile(`^\d+(?:\.\d+)*[.)]\s+`)
	// label: "quote" or label - "quote", with straight or curly quotes
	inlineQuote = regexp.MustCompile(`^(.+?)\s*(?::|\s-|–)\s*["“](.+?)["”]?\s*$`)
)

// Parse recovers a Gioia tree from free-form analysis text by line prefix.
// It accepts "Dimension:", "Theme:" and "- " lines, tolerating headings,
// bold markers, numbering and inline or following quotes. Lines it cannot
// place are ignored.
func Parse(raw string) []types.Dimension {
	var (
		dims         []types.Dimension
		dimIdx       = -1
		themeIdx     = -1
		haveCodeLast bool
	)

	ensureDimension := func() {
		if dimIdx < 0 {
			dims = append(dims, types.Dimension{Name: Unassigned})
			dimIdx = len(dims) - 1
			themeIdx = -1
		}
	}
	ensureTheme := func() {
		ensureDimension()
		if themeIdx < 0 {
			d := &dims[dimIdx]
			d.Themes = append(d.Themes, types.Theme{Name: Unassigned})
			themeIdx = len(d.Themes) - 1
		}
	}
	lastCode := func() *types.Code {
		t := &dims[dimIdx].Themes[themeIdx]
		return &t.Codes[len(t.Codes)-1]
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		bullet := isBullet(line) || listNumber.MatchString(line)
		bare := clean(line)
		if bare == "" {
			continue
		}

		if m := dimensionLine.FindStringSubmatch(bare); m != nil {
			dims = append(dims, types.Dimension{Name: cleanName(m[1])})
			dimIdx, themeIdx = len(dims)-1, -1
			haveCodeLast = false
			continue
		}
		if m := themeLine.FindStringSubmatch(bare); m != nil {
			ensureDimension()
			d := &dims[dimIdx]
			d.Themes = append(d.Themes, types.Theme{Name: cleanName(m[1])})
			themeIdx = len(d.Themes) - 1
			haveCodeLast = false
			continue
		}
		if codesHeader.MatchString(bare) {
			continue
		}
		if m := quoteLine.FindStringSubmatch(bare); m != nil || strings.HasPrefix(line, ">") {
			if !haveCodeLast {
				continue
			}
			quote := strings.TrimSpace(strings.TrimPrefix(line, ">"))
			if m != nil {
				quote = m[1]
			}
			lastCode().Quote = unquote(quote)
			continue
		}

		label := ""
		if m := codeLine.FindStringSubmatch(bare); m != nil {
			label = m[1]
		} else if bullet {
			label = bare
		}
		if label == "" {
			continue
		}

		ensureTheme()
		t := &dims[dimIdx].Themes[themeIdx]
		t.Codes = append(t.Codes, splitCode(label))
		haveCodeLast = true
	}

	return dims
}

func isBullet(line string) bool {
	for _, p := range []string{"- ", "* ", "• ", "+ "} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// clean strips markdown decoration at the start of a line.
func clean(line string) string {
	s := strings.TrimLeft(line, "#>-*•+ \t")
	s = listNumber.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(s)
}

func cleanName(s string) string {
	return strings.Trim(strings.TrimSpace(s), `*_"'`)
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"“”'`)
}

func splitCode(label string) types.Code {
	if m := inlineQuote.FindStringSubmatch(label); m != nil {
		return types.Code{Label: cleanName(m[1]), Quote: unquote(m[2])}
	}
	return types.Code{Label: cleanName(label)}
}

// RenderText writes dims in the canonical line-prefix form that Parse reads back.
func RenderText(dims []types.Dimension) string {
	var b strings.Builder
	for i, d := range dims {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Dimension: %s\n", d.Name)
		for _, t := range d.Themes {
			fmt.Fprintf(&b, "Theme: %s\n", t.Name)
			for _, c := range t.Codes {
				if c.Quote != "" {
					fmt.Fprintf(&b, "- %s: \"%s\"\n", c.Label, c.Quote)
				} else {
					fmt.Fprintf(&b, "- %s\n", c.Label)
				}
			}
		}
	}
	return b.String()
}
