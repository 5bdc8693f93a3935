// internal/browser/htmltext.go
package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// skipElements never contribute rendered text.
var skipElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "template": {},
	"head": {}, "title": {}, "object": {}, "svg": {},
}

// blockElements break the text flow, so words from adjacent blocks do not
// run together.
var blockElements = map[string]struct{}{
	"address": {}, "article": {}, "aside": {}, "blockquote": {}, "br": {},
	"dd": {}, "div": {}, "dl": {}, "dt": {}, "fieldset": {}, "figcaption": {},
	"figure": {}, "footer": {}, "form": {}, "h1": {}, "h2": {}, "h3": {},
	"h4": {}, "h5": {}, "h6": {}, "header": {}, "hr": {}, "li": {},
	"main": {}, "nav": {}, "ol": {}, "p": {}, "pre": {}, "section": {},
	"table": {}, "td": {}, "th": {}, "tr": {}, "ul": {},
}

// extractText returns the text a reader would see in raw HTML: markup
// stripped, hidden subtrees skipped, whitespace collapsed. Visibility is
// approximated from attributes alone; computed styles are out of reach here.
func extractText(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	walkText(doc, &sb)

	lines := strings.Split(sb.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}

func walkText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		if _, skip := skipElements[n.Data]; skip {
			return
		}
		if hiddenElement(n) {
			return
		}
		if _, block := blockElements[n.Data]; block {
			sb.WriteString("\n")
		}
	case html.TextNode:
		// Whitespace inside a text node renders as a plain space; only
		// block boundaries produce line breaks.
		sb.WriteString(strings.Map(func(r rune) rune {
			switch r {
			case '\n', '\r', '\t':
				return ' '
			}
			return r
		}, n.Data))
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}

	if n.Type == html.ElementNode {
		if _, block := blockElements[n.Data]; block {
			sb.WriteString("\n")
		}
	}
}

// hiddenElement reports whether the element is hidden by its own attributes.
func hiddenElement(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(a.Val), "true") {
				return true
			}
		case "style":
			style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		case "type":
			if n.Data == "input" && strings.EqualFold(a.Val, "hidden") {
				return true
			}
		}
	}
	return false
}
