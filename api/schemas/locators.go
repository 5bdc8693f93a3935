// api/schemas/locators.go
package schemas

// -- Locator Schemas --

// LocatorStrategy names one way of finding an element on the live page.
type LocatorStrategy string

const (
	// StrategyCSS is an explicit selector taken verbatim from the step text
	// ("#submit-btn", ".nav-item", "[data-test=login]").
	StrategyCSS LocatorStrategy = "css"
	// StrategyExactText matches an element whose own text equals the value.
	StrategyExactText LocatorStrategy = "exact-text"
	// StrategyAriaLabel matches on the aria-label attribute.
	StrategyAriaLabel LocatorStrategy = "aria-label"
	// StrategyPlaceholder matches input-like elements by placeholder text.
	StrategyPlaceholder LocatorStrategy = "placeholder"
	// StrategyTitleAttr matches on the title attribute.
	StrategyTitleAttr LocatorStrategy = "title-attr"
	// StrategyRole narrows by element role (button, link, field) and filters
	// by the remaining descriptive text.
	StrategyRole LocatorStrategy = "role"
	// StrategyPartialText is the case-insensitive substring match of last
	// resort.
	StrategyPartialText LocatorStrategy = "partial-text"
)

// LocatorCandidate is one strategy/value pair for finding a page element.
// Candidates are produced in precedence order: earlier entries are more
// specific and must be tried first.
type LocatorCandidate struct {
	Strategy LocatorStrategy `json:"strategy"`
	Value    string          `json:"value"`
	// Role refines StrategyRole candidates ("button", "link", "field",
	// "checkbox", "menu"). Empty for other strategies.
	Role string `json:"role,omitempty"`
}
