// internal/steps/parser.go
package steps

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/failcase/repro-cli/api/schemas"
)

// Parse converts one free-text step line into exactly one Action. It is a
// total function: no input makes it fail, and anything no rule matches comes
// back as ActionUnrecognized carrying the original line. Rules are tried in
// a fixed precedence order, first match wins, so the same line always parses
// the same way.
//
// Ordering: navigation, type, select, hover, scroll, wait, verify, click.
// Quoted substrings are always literal text, never selector prose.

var (
	// enumPrefixRe strips list numbering copied out of bug reports
	// ("1.", "2)", "Step 3:").
	enumPrefixRe = regexp.MustCompile(`^(?i:step\s+)?\d+\s*[.):\-]\s*`)

	urlRe      = regexp.MustCompile(`https?://[^\s'"<>]+`)
	durationRe = regexp.MustCompile(`(\d+)\s*(milliseconds?|ms|seconds?|secs?|s)\b`)
	quotedRe   = regexp.MustCompile(`["']([^"']+)["']`)

	// scrollEdgeRe matches whole-word edge destinations only, so "scroll to
	// the dropdown" keeps its element target.
	scrollEdgeRe = regexp.MustCompile(`(?:^|\s)(top|bottom|up|down)(?:\s|$)`)
)

// quoteNormalizer folds curly quotes onto their ASCII forms so quoting rules
// apply uniformly regardless of where the step text was authored.
var quoteNormalizer = strings.NewReplacer(
	"‘", "'", "’", "'", // ‘ ’
	"“", `"`, "”", `"`, // “ ”
)

// Parse maps one step line to its Action. See the package rules above.
func Parse(line string) schemas.Action {
	raw := line

	text := strings.TrimSpace(quoteNormalizer.Replace(line))
	text = enumPrefixRe.ReplaceAllString(text, "")
	lower := lowerASCII(text)

	if a, ok := parseNavigate(text, lower); ok {
		a.Raw = raw
		return a
	}
	if a, ok := parseType(text, lower); ok {
		a.Raw = raw
		return a
	}
	if a, ok := parseSelect(text, lower); ok {
		a.Raw = raw
		return a
	}
	if a, ok := parseHover(text, lower); ok {
		a.Raw = raw
		return a
	}
	if a, ok := parseScroll(text, lower); ok {
		a.Raw = raw
		return a
	}
	if a, ok := parseWait(text, lower); ok {
		a.Raw = raw
		return a
	}
	if a, ok := parseVerify(text, lower); ok {
		a.Raw = raw
		return a
	}
	if a, ok := parseClick(text, lower); ok {
		a.Raw = raw
		return a
	}

	return schemas.Action{Kind: schemas.ActionUnrecognized, Raw: raw}
}

// ParseAll parses every line in order. Blank lines are skipped; everything
// else maps one-to-one onto an Action.
func ParseAll(lines []string) []schemas.Action {
	actions := make([]schemas.Action, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		actions = append(actions, Parse(line))
	}
	return actions
}

// leadingVerb reports whether lower starts with one of the verbs on a word
// boundary, returning the remainder of the case-preserving text after it.
func leadingVerb(text, lower string, verbs ...string) (string, bool) {
	for _, v := range verbs {
		if !strings.HasPrefix(lower, v) {
			continue
		}
		rest := text[len(v):]
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// -- Rule 1: navigation --

func parseNavigate(text, lower string) (schemas.Action, bool) {
	rest, ok := leadingVerb(text, lower, "go to", "navigate to", "visit", "open")
	if !ok {
		return schemas.Action{}, false
	}

	// A scheme-bearing token anywhere on the line wins outright.
	if u := urlRe.FindString(text); u != "" {
		return schemas.Action{Kind: schemas.ActionNavigate, URL: strings.TrimRight(u, ".,;")}, true
	}
	// No scheme: the trimmed remainder is the destination, https assumed.
	// "go to example.com" just works; a remainder that is not really a host
	// fails at navigation time, against the exact step text.
	rest = strings.Trim(rest, `'" `)
	if rest == "" {
		return schemas.Action{}, false
	}
	return schemas.Action{Kind: schemas.ActionNavigate, URL: "https://" + rest}, true
}

// -- Rule 2: typing --

func parseType(text, lower string) (schemas.Action, bool) {
	rest, ok := leadingVerb(text, lower, "type", "enter", "fill", "input")
	if !ok {
		return schemas.Action{}, false
	}

	restLower := lowerASCII(rest)
	clauseIdx, clauseLen := findClause(restLower, " into ", " in ")
	if clauseIdx < 0 {
		return schemas.Action{}, false
	}

	target := cleanTarget(rest[clauseIdx+clauseLen:])
	before := rest[:clauseIdx]

	// The literal is the first quoted span before the clause, else the whole
	// span between the verb and the clause.
	literal := firstQuoted(before)
	if literal == "" {
		literal = strings.TrimSpace(before)
	}
	if target == "" {
		return schemas.Action{}, false
	}
	return schemas.Action{Kind: schemas.ActionType, Text: literal, Target: target}, true
}

// -- Rule 3: selection --

func parseSelect(text, lower string) (schemas.Action, bool) {
	rest, ok := leadingVerb(text, lower, "select", "choose")
	if !ok {
		return schemas.Action{}, false
	}

	restLower := lowerASCII(rest)
	clauseIdx, clauseLen := findClause(restLower, " from ")
	if clauseIdx < 0 {
		return schemas.Action{}, false
	}

	target := cleanTarget(rest[clauseIdx+clauseLen:])
	option := firstQuoted(rest[:clauseIdx])
	if option == "" {
		option = strings.TrimSpace(rest[:clauseIdx])
	}
	if option == "" || target == "" {
		return schemas.Action{}, false
	}
	return schemas.Action{Kind: schemas.ActionSelect, Option: option, Target: target}, true
}

// -- Rule 4: hover --

func parseHover(text, lower string) (schemas.Action, bool) {
	rest, ok := leadingVerb(text, lower, "hover")
	if !ok {
		return schemas.Action{}, false
	}
	rest = strings.TrimSpace(rest)
	if l := lowerASCII(rest); strings.HasPrefix(l, "over ") {
		rest = rest[len("over "):]
	}
	target := cleanTarget(rest)
	if target == "" {
		return schemas.Action{}, false
	}
	return schemas.Action{Kind: schemas.ActionHover, Target: target}, true
}

// -- Rule 5: scroll --

func parseScroll(text, lower string) (schemas.Action, bool) {
	rest, ok := leadingVerb(text, lower, "scroll")
	if !ok {
		return schemas.Action{}, false
	}

	restLower := lowerASCII(rest)
	if m := scrollEdgeRe.FindStringSubmatch(restLower); m != nil {
		edge := schemas.ScrollBottom
		if m[1] == "top" || m[1] == "up" {
			edge = schemas.ScrollTop
		}
		return schemas.Action{Kind: schemas.ActionScroll, Edge: edge}, true
	}

	if strings.HasPrefix(restLower, "to ") {
		rest = rest[len("to "):]
	}
	if target := cleanTarget(rest); target != "" {
		return schemas.Action{Kind: schemas.ActionScroll, Target: target}, true
	}
	// Bare "scroll": the closed variant set has no partial scroll, so the
	// bottom edge stands in for it.
	return schemas.Action{Kind: schemas.ActionScroll, Edge: schemas.ScrollBottom}, true
}

// -- Rule 6: waits --

func parseWait(text, lower string) (schemas.Action, bool) {
	rest, ok := leadingVerb(text, lower, "wait")
	if !ok {
		return schemas.Action{}, false
	}

	restLower := lowerASCII(rest)
	for _, marker := range []string{"for ", "until "} {
		if !strings.HasPrefix(restLower, marker) {
			continue
		}
		target := cleanTarget(trimWaitSuffix(rest[len(marker):]))
		if target == "" {
			return schemas.Action{}, false
		}
		return schemas.Action{Kind: schemas.ActionWaitFor, Target: target}, true
	}

	if m := durationRe.FindStringSubmatch(restLower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return schemas.Action{}, false
		}
		unit := time.Second
		if strings.HasPrefix(m[2], "ms") || strings.HasPrefix(m[2], "millisecond") {
			unit = time.Millisecond
		}
		return schemas.Action{Kind: schemas.ActionWaitSeconds, Duration: time.Duration(n) * unit}, true
	}

	// Bare "wait" has no defined duration; let it surface as unrecognized
	// rather than inventing one.
	return schemas.Action{}, false
}

// trimWaitSuffix drops the condition tail of a "wait for X to appear" line.
func trimWaitSuffix(s string) string {
	lower := lowerASCII(s)
	for _, suffix := range []string{
		" to appear", " to be visible", " to become visible", " to load",
		" to show up", " appears", " is visible",
	} {
		if i := strings.LastIndex(lower, suffix); i >= 0 && i+len(suffix) == len(lower) {
			return s[:i]
		}
	}
	return s
}

// -- Rule 7: verification --

func parseVerify(text, lower string) (schemas.Action, bool) {
	rest, ok := leadingVerb(text, lower, "verify", "check", "assert", "ensure", "confirm")
	if !ok {
		return schemas.Action{}, false
	}
	if l := lowerASCII(rest); strings.HasPrefix(l, "that ") {
		rest = rest[len("that "):]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return schemas.Action{}, false
	}

	return schemas.Action{
		Kind:      schemas.ActionVerify,
		Assertion: rest,
		Target:    verifyTarget(rest),
	}, true
}

// verifyTarget pulls the optional element subject out of an assertion. A
// visibility- or content-phrased assertion names a subject ("the error
// banner is not visible", "the header says 'Hello'"); a bare assertion is a
// page-level content check and has no target.
func verifyTarget(assertion string) string {
	lower := lowerASCII(assertion)

	phraseIdx := -1
	for _, kw := range []string{
		" is visible", " are visible", " is displayed", " is shown",
		" is not visible", " is hidden", " is invisible", " has disappeared",
		" exists", " appears", " contains", " says", " has text", " shows",
	} {
		if i := strings.Index(lower, kw); i >= 0 && (phraseIdx < 0 || i < phraseIdx) {
			phraseIdx = i
		}
	}
	if phraseIdx < 0 {
		return ""
	}

	subject := cleanTarget(assertion[:phraseIdx])
	switch lowerASCII(subject) {
	case "", "page", "the page", "screen", "the screen":
		return ""
	}
	return subject
}

// -- Rule 8: click --

func parseClick(text, lower string) (schemas.Action, bool) {
	rest, ok := leadingVerb(text, lower, "click", "press", "tap")
	if !ok {
		return schemas.Action{}, false
	}
	if l := lowerASCII(rest); strings.HasPrefix(l, "on ") {
		rest = rest[len("on "):]
	}
	target := cleanTarget(rest)
	if target == "" {
		return schemas.Action{}, false
	}
	return schemas.Action{Kind: schemas.ActionClick, Target: target}, true
}

// -- Shared extraction helpers --

// lowerASCII folds ASCII letters only, byte for byte. Unlike strings.ToLower
// it never changes the byte length of the input, so an index found in the
// folded text always slices the original safely. All rule keywords are
// ASCII, so nothing is lost by leaving other runes alone.
func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// findClause locates the first occurrence of any clause marker, returning
// its index and length. Markers are tried in order so " into " beats " in ".
func findClause(lower string, markers ...string) (int, int) {
	for _, m := range markers {
		if i := strings.Index(lower, m); i >= 0 {
			return i, len(m)
		}
	}
	return -1, 0
}

// firstQuoted returns the first quoted span, without its quotes.
func firstQuoted(s string) string {
	if m := quotedRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// cleanTarget trims glue words off a target description while leaving the
// description itself intact: quotes and selector tokens (#id, .class) are
// preserved for the resolver, which owns their interpretation.
func cleanTarget(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".,;:")
	lower := lowerASCII(s)
	for _, art := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, art) {
			s = s[len(art):]
			break
		}
	}
	return strings.TrimSpace(s)
}
