package document

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Document is a complete HTML page ready to be loaded into a web view.
type Document string

// String returns the document text.
func (d Document) String() string { return string(d) }

const (
	badgeRule = `
        .grecaptcha-badge {
            visibility: hidden;
        }
`
	// unsetLiteral is what an unset field stringifies to in StringifyUnset mode.
	unsetLiteral = "undefined"
)

// placeholderPattern matches every known {{key}} token regardless of case.
var placeholderPattern = regexp.MustCompile(`(?im)\{\{(` + strings.Join([]string{
	regexp.QuoteMeta(KeySiteKey),
	regexp.QuoteMeta(KeySize),
	regexp.QuoteMeta(KeyTheme),
	regexp.QuoteMeta(KeyLang),
	regexp.QuoteMeta(KeyAction),
}, "|") + `)\}\}`)

// ScriptURL returns the provider script address. render=explicit keeps the
// provider from creating widgets on its own.
func ScriptURL(endpoints Endpoints, enterprise bool) string {
	if enterprise {
		return "https://" + endpoints.ScriptDomain + "/recaptcha/enterprise.js?render=explicit"
	}
	return "https://" + endpoints.ScriptDomain + "/recaptcha/api.js?render=explicit"
}

// Build renders the widget document. It performs no I/O and identical inputs
// always produce identical output.
func Build(params Params, endpoints Endpoints, flags Flags) Document {
	optional := func(v string) string {
		if v == "" && flags.StringifyUnset {
			return jsString(unsetLiteral)
		}
		return jsString(v)
	}

	diagnostics := flags.Diagnostics
	if diagnostics == "" {
		diagnostics = DiagnosticsOff
	}

	var values [slotCount]string
	values[slotScriptDomain] = endpoints.ScriptDomain
	values[slotStaticDomain] = endpoints.StaticDomain
	if flags.HideBadge {
		values[slotBadgeRule] = badgeRule
	}
	values[slotSiteKey] = optional(params.SiteKey)
	values[slotSize] = optional(string(params.Size))
	values[slotTheme] = optional(string(params.Theme))
	values[slotAction] = optional(params.Action)
	values[slotScriptURL] = jsString(ScriptURL(endpoints, flags.Enterprise))
	values[slotEnterprise] = strconv.FormatBool(flags.Enterprise)
	values[slotDiagnostics] = jsString(string(diagnostics))
	values[slotLifecycle] = lifecycleScript

	return Document(Substitute(defaultLayout.render(&values), params.Values()))
}

// Substitute replaces {{key}} tokens in text with values[key], matching keys
// case-insensitively. It runs once over the whole text; inserted values are
// not scanned again and are copied literally. Tokens whose key has no value
// are left as they are.
func Substitute(text string, values map[string]string) string {
	if len(values) == 0 {
		return text
	}
	folded := make(map[string]string, len(values))
	for k, v := range values {
		folded[strings.ToLower(k)] = v
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := strings.ToLower(match[2 : len(match)-2])
		if v, ok := folded[key]; ok {
			return v
		}
		return match
	})
}

// jsString encodes s as a JavaScript string literal safe to place inside a
// <script> element.
func jsString(s string) string {
	out, err := sonic.ConfigStd.MarshalToString(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return out
}
