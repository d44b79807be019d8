package document

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid template parameters")

// Size is the widget size requested from the provider.
type Size string

const (
	SizeInvisible Size = "invisible"
	SizeNormal    Size = "normal"
	SizeCompact   Size = "compact"
)

// Theme is the widget color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Params holds the caller-supplied widget parameters. Empty strings mean
// the field was not set.
type Params struct {
	SiteKey string
	Size    Size
	Theme   Theme
	Lang    string
	Action  string
}

// Placeholder keys, matched case-insensitively as {{key}}.
const (
	KeySiteKey = "siteKey"
	KeySize    = "size"
	KeyTheme   = "theme"
	KeyLang    = "lang"
	KeyAction  = "action"
)

// Values returns the present fields keyed by placeholder name. Unset fields
// are absent, so their placeholders stay in the document untouched.
func (p Params) Values() map[string]string {
	values := make(map[string]string, 5)
	add := func(key, value string) {
		if value != "" {
			values[key] = value
		}
	}
	add(KeySiteKey, p.SiteKey)
	add(KeySize, string(p.Size))
	add(KeyTheme, string(p.Theme))
	add(KeyLang, p.Lang)
	add(KeyAction, p.Action)
	return values
}

// Validate checks the fields a provider would reject. Build does not call it.
func (p Params) Validate() error {
	if p.SiteKey == "" {
		return fmt.Errorf("%w: site key is required", ErrInvalidParams)
	}
	switch p.Size {
	case "", SizeInvisible, SizeNormal, SizeCompact:
	default:
		return fmt.Errorf("%w: unknown size %q", ErrInvalidParams, p.Size)
	}
	switch p.Theme {
	case "", ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidParams, p.Theme)
	}
	if p.Lang != "" {
		if _, err := language.Parse(p.Lang); err != nil {
			return fmt.Errorf("%w: lang %q: %v", ErrInvalidParams, p.Lang, err)
		}
	}
	return nil
}

// Endpoints are the provider hostnames. They are not validated.
type Endpoints struct {
	ScriptDomain string
	StaticDomain string
}

// DefaultEndpoints returns the public reCAPTCHA hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ScriptDomain: "www.google.com",
		StaticDomain: "www.gstatic.com",
	}
}

// DiagnosticMode selects where setup checkpoints are reported.
type DiagnosticMode string

const (
	// DiagnosticsOff drops checkpoints.
	DiagnosticsOff DiagnosticMode = "off"
	// DiagnosticsConsole writes checkpoints with console.debug.
	DiagnosticsConsole DiagnosticMode = "console"
	// DiagnosticsExpire posts checkpoints as expire messages, matching
	// hosts built against the older document.
	DiagnosticsExpire DiagnosticMode = "expire"
)

// ParseDiagnosticMode maps a config value to a mode. Empty means off.
func ParseDiagnosticMode(s string) (DiagnosticMode, error) {
	switch DiagnosticMode(s) {
	case "", DiagnosticsOff:
		return DiagnosticsOff, nil
	case DiagnosticsConsole, DiagnosticsExpire:
		return DiagnosticMode(s), nil
	}
	return DiagnosticsOff, fmt.Errorf("unknown diagnostics mode %q", s)
}

// Flags are the render switches.
type Flags struct {
	Enterprise bool
	HideBadge  bool
	// StringifyUnset inlines unset optional fields as the text "undefined"
	// instead of an empty string, so they reach the widget config.
	StringifyUnset bool
	Diagnostics    DiagnosticMode
}
