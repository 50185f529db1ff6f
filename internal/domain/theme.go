package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ThemeKey is the storage key of the persisted theme colour.
	ThemeKey = "nasa-eonet-theme"
	// ThemeVariable is the CSS custom property the theme colour is bound to.
	ThemeVariable = "--primary-color"
	// DefaultTheme is applied when nothing has been stored yet.
	DefaultTheme = "#1A4B84"
)

// ErrInvalidTheme is returned for colour values that cannot be used as a CSS value.
var ErrInvalidTheme = errors.New("invalid theme colour")

// ValidateTheme rejects empty colours and characters that would end the CSS
// declaration or break out of a style attribute.
func ValidateTheme(color string) error {
	if strings.TrimSpace(color) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTheme)
	}
	if len(color) > 64 {
		return fmt.Errorf("%w: too long", ErrInvalidTheme)
	}
	if strings.ContainsAny(color, ";{}<>\"'\\\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, color)
	}
	return nil
}

// ThemeDeclaration renders the CSS custom property assignment for a colour.
func ThemeDeclaration(color string) string {
	return ThemeVariable + ": " + strings.TrimSpace(color)
}
