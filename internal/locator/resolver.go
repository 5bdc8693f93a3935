// internal/locator/resolver.go
package locator

import (
	"regexp"
	"strings"

	"github.com/failcase/repro-cli/api/schemas"
)

// Resolve maps a free-text element description onto an ordered list of
// locator candidates, most specific first. It is a pure function of the
// description: it never queries the page. The executor tries candidates in
// order against the live document and stops at the first one that matches.
//
// Precedence: explicit selector syntax embedded in the text, then the quoted
// literal as exact visible text, then accessibility label, placeholder and
// title attributes, then a role/keyword heuristic, and finally a
// case-insensitive partial text match.
func Resolve(desc string) []schemas.LocatorCandidate {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil
	}

	var out []schemas.LocatorCandidate
	seen := make(map[schemas.LocatorCandidate]struct{})
	add := func(c schemas.LocatorCandidate) {
		if c.Value == "" && c.Strategy != schemas.StrategyCSS {
			return
		}
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	// 1. Explicit selector tokens are used verbatim, in order of appearance.
	for _, sel := range explicitSelectors(desc) {
		add(schemas.LocatorCandidate{Strategy: schemas.StrategyCSS, Value: sel})
	}

	quoted := firstQuoted(desc)
	if quoted != "" {
		add(schemas.LocatorCandidate{Strategy: schemas.StrategyExactText, Value: quoted})
	}

	// Fuzzy strategies share one needle: the quoted literal when present,
	// otherwise the description stripped of glue and role words.
	needle := quoted
	if needle == "" {
		needle = descriptiveText(desc)
	}
	add(schemas.LocatorCandidate{Strategy: schemas.StrategyAriaLabel, Value: needle})
	add(schemas.LocatorCandidate{Strategy: schemas.StrategyPlaceholder, Value: needle})
	add(schemas.LocatorCandidate{Strategy: schemas.StrategyTitleAttr, Value: needle})

	if role := roleKeyword(desc); role != "" && needle != "" {
		add(schemas.LocatorCandidate{Strategy: schemas.StrategyRole, Role: role, Value: needle})
	}

	add(schemas.LocatorCandidate{Strategy: schemas.StrategyPartialText, Value: needle})

	return out
}

var (
	idSelRe    = regexp.MustCompile(`#[A-Za-z0-9_-]+`)
	classSelRe = regexp.MustCompile(`\.[A-Za-z_][A-Za-z0-9_-]*`)
	attrSelRe  = regexp.MustCompile(`\[[^\[\]]+\]`)
	quotedRe   = regexp.MustCompile(`["']([^"']+)["']`)
)

// explicitSelectors pulls #id, .class and [attr] tokens out of the text in
// order of appearance.
func explicitSelectors(desc string) []string {
	type hit struct {
		idx int
		sel string
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{idSelRe, classSelRe, attrSelRe} {
		for _, loc := range re.FindAllStringIndex(desc, -1) {
			hits = append(hits, hit{idx: loc[0], sel: desc[loc[0]:loc[1]]})
		}
	}
	// Insertion sort by position; the list is tiny.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].idx < hits[j-1].idx; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	sels := make([]string, len(hits))
	for i, h := range hits {
		sels[i] = h.sel
	}
	return sels
}

func firstQuoted(s string) string {
	if m := quotedRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// roleWords maps descriptive keywords to the element role they narrow.
var roleWords = map[string]string{
	"button":   "button",
	"link":     "link",
	"input":    "field",
	"field":    "field",
	"box":      "field",
	"textbox":  "field",
	"checkbox": "checkbox",
	"radio":    "radio",
	"dropdown": "menu",
	"menu":     "menu",
	"select":   "menu",
	"tab":      "tab",
	"icon":     "icon",
}

// fillerWords never carry locating information.
var fillerWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "element": {}, "item": {}, "of": {},
}

// roleKeyword returns the role narrowed by the first recognized keyword.
func roleKeyword(desc string) string {
	for _, w := range strings.Fields(strings.ToLower(desc)) {
		w = strings.Trim(w, `'".,;:`)
		if role, ok := roleWords[w]; ok {
			return role
		}
	}
	return ""
}

// descriptiveText strips selector tokens, quotes, role keywords and filler
// from a description, leaving the words that actually describe the element
// ("the email field" -> "email").
func descriptiveText(desc string) string {
	s := idSelRe.ReplaceAllString(desc, " ")
	s = classSelRe.ReplaceAllString(s, " ")
	s = attrSelRe.ReplaceAllString(s, " ")
	s = quotedRe.ReplaceAllString(s, " ")

	var keep []string
	for _, w := range strings.Fields(s) {
		probe := strings.ToLower(strings.Trim(w, `'".,;:`))
		if probe == "" {
			continue
		}
		if _, filler := fillerWords[probe]; filler {
			continue
		}
		if _, role := roleWords[probe]; role {
			continue
		}
		keep = append(keep, strings.Trim(w, `'".,;:`))
	}
	return strings.Join(keep, " ")
}
