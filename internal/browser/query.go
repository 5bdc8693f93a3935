// internal/browser/query.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/failcase/repro-cli/api/schemas"
)

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// queryKind distinguishes CSS selector queries from XPath queries, which map
// onto different chromedp query options.
type queryKind int

const (
	kindCSS queryKind = iota
	kindXPath
)

// loweredQuery is a locator candidate translated into a concrete page query.
type loweredQuery struct {
	query string
	kind  queryKind
}

// countOptions selects all matches without waiting for any.
func (q loweredQuery) countOptions() []chromedp.QueryOption {
	if q.kind == kindXPath {
		return []chromedp.QueryOption{chromedp.BySearch, chromedp.AtLeast(0)}
	}
	return []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
}

// actOptions selects the first match in document order for interaction.
func (q loweredQuery) actOptions() []chromedp.QueryOption {
	if q.kind == kindXPath {
		return []chromedp.QueryOption{chromedp.BySearch}
	}
	return []chromedp.QueryOption{chromedp.ByQuery}
}

// lowerCandidate translates a locator candidate into an executable query.
// CSS strategies keep selector semantics; text strategies become XPath so the
// match can be case-insensitive and attribute-independent.
func lowerCandidate(c schemas.LocatorCandidate) (loweredQuery, error) {
	switch c.Strategy {
	case schemas.StrategyCSS:
		if strings.TrimSpace(c.Value) == "" {
			return loweredQuery{}, fmt.Errorf("empty css selector")
		}
		return loweredQuery{query: c.Value, kind: kindCSS}, nil

	case schemas.StrategyExactText:
		// Matches elements owning a text node whose normalized form equals
		// the value. Matching the text node's element rather than every
		// ancestor keeps the hit specific; events bubble up regardless.
		q := fmt.Sprintf(`//*[text()[normalize-space(.)=%s]]`, xpathLiteral(c.Value))
		return loweredQuery{query: q, kind: kindXPath}, nil

	case schemas.StrategyAriaLabel:
		return loweredQuery{query: fmt.Sprintf(`[aria-label=%s]`, cssLiteral(c.Value)), kind: kindCSS}, nil

	case schemas.StrategyPlaceholder:
		return loweredQuery{query: fmt.Sprintf(`[placeholder=%s]`, cssLiteral(c.Value)), kind: kindCSS}, nil

	case schemas.StrategyTitleAttr:
		return loweredQuery{query: fmt.Sprintf(`[title=%s]`, cssLiteral(c.Value)), kind: kindCSS}, nil

	case schemas.StrategyRole:
		q, err := roleXPath(c.Role, c.Value)
		if err != nil {
			return loweredQuery{}, err
		}
		return loweredQuery{query: q, kind: kindXPath}, nil

	case schemas.StrategyPartialText:
		q := fmt.Sprintf(`//*[text()[contains(%s, %s)]]`,
			ciText("normalize-space(.)"), xpathLiteral(strings.ToLower(c.Value)))
		return loweredQuery{query: q, kind: kindXPath}, nil
	}

	return loweredQuery{}, fmt.Errorf("unknown locator strategy %q", c.Strategy)
}

// roleForms maps an abstract element role onto the XPath element forms that
// can present it. %s is replaced with the text predicate.
var roleForms = map[string][]string{
	"button": {
		`//button[%s]`,
		`//input[(@type="submit" or @type="button") and %s]`,
		`//*[@role="button" and %s]`,
	},
	"link": {
		`//a[%s]`,
		`//*[@role="link" and %s]`,
	},
	"field": {
		`//input[not(@type="submit" or @type="button" or @type="checkbox" or @type="radio") and %s]`,
		`//textarea[%s]`,
		`//*[@role="textbox" and %s]`,
	},
	"checkbox": {
		`//input[@type="checkbox" and %s]`,
		`//*[@role="checkbox" and %s]`,
	},
	"radio": {
		`//input[@type="radio" and %s]`,
		`//*[@role="radio" and %s]`,
	},
	"menu": {
		`//select[%s]`,
		`//*[(@role="listbox" or @role="menu" or @role="combobox") and %s]`,
	},
	"tab": {
		`//*[@role="tab" and %s]`,
	},
	"icon": {
		`//*[@role="img" and %s]`,
		`//svg[%s]`,
		`//i[%s]`,
	},
}

// roleXPath builds a union query over every element form the role can take,
// each filtered by a case-insensitive match of text against the element's
// visible text or its labelling attributes.
func roleXPath(role, text string) (string, error) {
	forms, ok := roleForms[role]
	if !ok {
		return "", fmt.Errorf("unknown element role %q", role)
	}

	needle := xpathLiteral(strings.ToLower(text))
	preds := []string{
		fmt.Sprintf("contains(%s, %s)", ciText("normalize-space(.)"), needle),
		fmt.Sprintf("contains(%s, %s)", ciText("@aria-label"), needle),
		fmt.Sprintf("contains(%s, %s)", ciText("@value"), needle),
		fmt.Sprintf("contains(%s, %s)", ciText("@placeholder"), needle),
		fmt.Sprintf("contains(%s, %s)", ciText("@title"), needle),
		fmt.Sprintf("contains(%s, %s)", ciText("@name"), needle),
		fmt.Sprintf("contains(%s, %s)", ciText("@id"), needle),
	}
	pred := "(" + strings.Join(preds, " or ") + ")"

	parts := make([]string, len(forms))
	for i, form := range forms {
		parts[i] = strings.ReplaceAll(form, "%s", pred)
	}
	return strings.Join(parts, " | "), nil
}

// ciText lowercases an XPath string expression via the translate() idiom.
func ciText(expr string) string {
	return fmt.Sprintf("translate(%s, %q, %q)", expr, upperAlpha, lowerAlpha)
}

// xpathLiteral quotes s as an XPath string literal. XPath has no escape
// syntax, so values containing both quote kinds are assembled with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	var sb strings.Builder
	sb.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			sb.WriteString(`, "'", `)
		}
		sb.WriteString(`'` + p + `'`)
	}
	sb.WriteString(")")
	return sb.String()
}

// cssLiteral quotes s as a CSS string for attribute selectors.
func cssLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
