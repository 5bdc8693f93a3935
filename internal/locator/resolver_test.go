// internal/locator/resolver_test.go
package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/failcase/repro-cli/api/schemas"
)

func strategies(cands []schemas.LocatorCandidate) []schemas.LocatorStrategy {
	out := make([]schemas.LocatorStrategy, len(cands))
	for i, c := range cands {
		out[i] = c.Strategy
	}
	return out
}

// An explicit #id must always be the first candidate, whatever else the
// description contains.
func TestResolve_ExplicitSelectorFirst(t *testing.T) {
	testCases := []struct {
		name string
		desc string
		want string
	}{
		{"bare id", "#submit-btn", "#submit-btn"},
		{"id inside prose", "the #submit-btn button", "#submit-btn"},
		{"class selector", ".nav-item link", ".nav-item"},
		{"attribute hint", "[data-test=login] field", "[data-test=login]"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cands := Resolve(tc.desc)
			require.NotEmpty(t, cands)
			assert.Equal(t, schemas.StrategyCSS, cands[0].Strategy)
			assert.Equal(t, tc.want, cands[0].Value)
		})
	}
}

func TestResolve_QuotedLiteralBeatsHeuristics(t *testing.T) {
	cands := Resolve("'Login' button")
	require.NotEmpty(t, cands)

	assert.Equal(t, schemas.StrategyExactText, cands[0].Strategy)
	assert.Equal(t, "Login", cands[0].Value)

	// The quoted literal is also the needle for every fuzzy strategy.
	for _, c := range cands[1:] {
		assert.Equal(t, "Login", c.Value, "strategy %s", c.Strategy)
	}
}

func TestResolve_FullPrecedenceOrder(t *testing.T) {
	cands := Resolve("the 'Submit' button")
	require.Len(t, cands, 6)
	assert.Equal(t, []schemas.LocatorStrategy{
		schemas.StrategyExactText,
		schemas.StrategyAriaLabel,
		schemas.StrategyPlaceholder,
		schemas.StrategyTitleAttr,
		schemas.StrategyRole,
		schemas.StrategyPartialText,
	}, strategies(cands))

	role := cands[4]
	assert.Equal(t, "button", role.Role)
	assert.Equal(t, "Submit", role.Value)
}

func TestResolve_UnquotedDescription(t *testing.T) {
	cands := Resolve("the email field")
	require.NotEmpty(t, cands)

	// No quotes, so no exact-text candidate; fuzzy strategies use the
	// descriptive word with role and filler words stripped.
	assert.Equal(t, schemas.StrategyAriaLabel, cands[0].Strategy)
	assert.Equal(t, "email", cands[0].Value)

	var roles []string
	for _, c := range cands {
		assert.NotEqual(t, schemas.StrategyExactText, c.Strategy)
		if c.Strategy == schemas.StrategyRole {
			roles = append(roles, c.Role)
		}
	}
	assert.Equal(t, []string{"field"}, roles)

	last := cands[len(cands)-1]
	assert.Equal(t, schemas.StrategyPartialText, last.Strategy)
	assert.Equal(t, "email", last.Value)
}

func TestResolve_RoleKeywords(t *testing.T) {
	testCases := []struct {
		desc     string
		wantRole string
	}{
		{"the country dropdown", "menu"},
		{"remember me checkbox", "checkbox"},
		{"profile link", "link"},
		{"search input", "field"},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			var found bool
			for _, c := range Resolve(tc.desc) {
				if c.Strategy == schemas.StrategyRole {
					assert.Equal(t, tc.wantRole, c.Role)
					found = true
				}
			}
			assert.True(t, found, "expected a role candidate for %q", tc.desc)
		})
	}
}

func TestResolve_Degenerate(t *testing.T) {
	assert.Nil(t, Resolve(""))
	assert.Nil(t, Resolve("   "))

	// Pure selector text produces only the verbatim CSS candidate.
	cands := Resolve("#login")
	require.Len(t, cands, 1)
	assert.Equal(t, schemas.StrategyCSS, cands[0].Strategy)

	// Filler-only text has nothing for the fuzzy strategies to use.
	assert.Empty(t, Resolve("the the the"))
}

func TestResolve_Deterministic(t *testing.T) {
	a := Resolve("the 'Save' button in the toolbar")
	b := Resolve("the 'Save' button in the toolbar")
	assert.Equal(t, a, b)
}

func TestResolve_MultipleExplicitSelectors(t *testing.T) {
	cands := Resolve("#main .card")
	require.True(t, len(cands) >= 2)
	assert.Equal(t, schemas.StrategyCSS, cands[0].Strategy)
	assert.Equal(t, "#main", cands[0].Value)
	assert.Equal(t, schemas.StrategyCSS, cands[1].Strategy)
	assert.Equal(t, ".card", cands[1].Value)
}
