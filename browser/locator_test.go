package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		in   string
		want Locator
	}{
		{in: "button#submit", want: Locator{Kind: LocatorCSS, Expr: "button#submit"}},
		{in: "  css=form > input[name=email] ", want: Locator{Kind: LocatorCSS, Expr: "form > input[name=email]"}},
		{in: `button:has-text("Sign in")`, want: Locator{Kind: LocatorCSS, Expr: "button", HasText: []string{"Sign in"}}},
		{in: `:has-text('Next')`, want: Locator{Kind: LocatorCSS, Expr: "*", HasText: []string{"Next"}}},
		{in: `div.card:has-text("Plan"):has-text("Pro")`, want: Locator{Kind: LocatorCSS, Expr: "div.card", HasText: []string{"Plan", "Pro"}}},
		{in: `xpath=//a[@href="/home"]`, want: Locator{Kind: LocatorXPath, Expr: `//a[@href="/home"]`}},
		{in: `//button[text()="Go"]`, want: Locator{Kind: LocatorXPath, Expr: `//button[text()="Go"]`}},
		{in: `(//input)[2]`, want: Locator{Kind: LocatorXPath, Expr: `(//input)[2]`}},
		{in: `text=Sign in`, want: Locator{Kind: LocatorText, Expr: "Sign in"}},
		{in: `text="Sign in"`, want: Locator{Kind: LocatorText, Expr: "Sign in", Exact: true}},
		{in: `text='It\'s me'`, want: Locator{Kind: LocatorText, Expr: "It's me", Exact: true}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocator(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocator_Empty(t *testing.T) {
	_, err := ParseLocator("   ")
	assert.ErrorIs(t, err, ErrEmptyLocator)
}
