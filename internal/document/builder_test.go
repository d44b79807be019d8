package document

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		SiteKey: "6LeIxAcTAAAAAJcZVRqyHh71UMIEGNQ_MXjiZKhI",
		Size:    SizeInvisible,
		Theme:   ThemeDark,
		Lang:    "pt-BR",
		Action:  "login",
	}
}

func TestBuildInlinesParameters(t *testing.T) {
	p := testParams()
	doc := Build(p, DefaultEndpoints(), Flags{}).String()

	assert.Contains(t, doc, `const siteKey = "`+p.SiteKey+`";`)
	assert.Contains(t, doc, `const size = "invisible";`)
	assert.Contains(t, doc, `const theme = "dark";`)
	assert.Contains(t, doc, `const action = "login";`)
	assert.Contains(t, doc, `const scriptUrl = "https://www.google.com/recaptcha/api.js?render=explicit";`)
	assert.Contains(t, doc, `const enterprise = false;`)
	assert.Contains(t, doc, `const diagnostics = "off";`)
	assert.Contains(t, doc, "window.rnRecaptcha")

	lower := strings.ToLower(doc)
	for _, key := range []string{KeySiteKey, KeySize, KeyTheme, KeyLang, KeyAction} {
		assert.NotContains(t, lower, "{{"+strings.ToLower(key)+"}}", "placeholder %s left in output", key)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	p := testParams()
	flags := Flags{Enterprise: true, HideBadge: true, Diagnostics: DiagnosticsConsole}

	first := Build(p, DefaultEndpoints(), flags)
	second := Build(p, DefaultEndpoints(), flags)

	assert.Equal(t, first, second)
}

func TestBuildBadgeRule(t *testing.T) {
	tests := []struct {
		name      string
		hideBadge bool
	}{
		{name: "badge hidden", hideBadge: true},
		{name: "badge visible", hideBadge: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Build(testParams(), DefaultEndpoints(), Flags{HideBadge: tt.hideBadge}).String()

			root, err := htmlquery.Parse(strings.NewReader(doc))
			require.NoError(t, err)
			style := htmlquery.FindOne(root, "//head/style")
			require.NotNil(t, style)

			css := htmlquery.InnerText(style)
			assert.Contains(t, css, "background-color: transparent;")
			if tt.hideBadge {
				assert.Contains(t, css, ".grecaptcha-badge")
				assert.Contains(t, css, "visibility: hidden;")
			} else {
				assert.NotContains(t, css, ".grecaptcha-badge")
			}
		})
	}
}

func TestScriptURL(t *testing.T) {
	endpoints := Endpoints{ScriptDomain: "www.recaptcha.net", StaticDomain: "www.gstatic.com"}

	enterprise := ScriptURL(endpoints, true)
	standard := ScriptURL(endpoints, false)

	assert.Equal(t, "https://www.recaptcha.net/recaptcha/enterprise.js?render=explicit", enterprise)
	assert.Equal(t, "https://www.recaptcha.net/recaptcha/api.js?render=explicit", standard)

	doc := Build(testParams(), endpoints, Flags{Enterprise: true}).String()
	assert.Contains(t, doc, "enterprise.js")
	assert.NotContains(t, doc, "api.js")
	assert.Contains(t, doc, `const enterprise = true;`)
}

func TestBuildMarkup(t *testing.T) {
	endpoints := Endpoints{ScriptDomain: "scripts.example.test", StaticDomain: "static.example.test"}
	doc := Build(testParams(), endpoints, Flags{}).String()

	root, err := htmlquery.Parse(strings.NewReader(doc))
	require.NoError(t, err)

	html := htmlquery.FindOne(root, "//html")
	require.NotNil(t, html)
	assert.Equal(t, "pt-BR", htmlquery.SelectAttr(html, "lang"))

	assert.NotNil(t, htmlquery.FindOne(root, "//body/div[@class='container']"))
	assert.Len(t, htmlquery.Find(root, "//script"), 1)

	var hrefs []string
	for _, link := range htmlquery.Find(root, "//link[@rel='preconnect']") {
		hrefs = append(hrefs, htmlquery.SelectAttr(link, "href"))
	}
	assert.Equal(t, []string{"https://scripts.example.test", "https://static.example.test"}, hrefs)
}

func TestBuildUnsetFields(t *testing.T) {
	p := Params{SiteKey: "key"}

	t.Run("omitted by default", func(t *testing.T) {
		doc := Build(p, DefaultEndpoints(), Flags{}).String()
		assert.Contains(t, doc, `const size = "";`)
		assert.Contains(t, doc, `const theme = "";`)
		assert.Contains(t, doc, `const action = "";`)
		// lang is unset so its placeholder survives.
		assert.Contains(t, doc, `<html lang="{{lang}}">`)
	})

	t.Run("stringified", func(t *testing.T) {
		doc := Build(p, DefaultEndpoints(), Flags{StringifyUnset: true}).String()
		assert.Contains(t, doc, `const size = "undefined";`)
		assert.Contains(t, doc, `const theme = "undefined";`)
		assert.Contains(t, doc, `const action = "undefined";`)
		assert.Contains(t, doc, `const siteKey = "key";`)
	})
}

func TestBuildEscapesScriptValues(t *testing.T) {
	p := Params{SiteKey: `key"</script><script>alert(1)</script>`}
	doc := Build(p, DefaultEndpoints(), Flags{}).String()

	assert.Equal(t, 1, strings.Count(doc, "</script>"))
	assert.Contains(t, doc, `const siteKey = "key\"\u003c/script\u003e`)
}

func TestBuildDiagnosticsMode(t *testing.T) {
	doc := Build(testParams(), DefaultEndpoints(), Flags{Diagnostics: DiagnosticsExpire}).String()
	assert.Contains(t, doc, `const diagnostics = "expire";`)
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		values map[string]string
		want   string
	}{
		{
			name:   "case insensitive",
			text:   `{{siteKey}} {{SITEKEY}} {{sitekey}}`,
			values: map[string]string{KeySiteKey: "abc"},
			want:   "abc abc abc",
		},
		{
			name:   "across lines",
			text:   "{{lang}}\n<p>{{Lang}}</p>\n",
			values: map[string]string{KeyLang: "en"},
			want:   "en\n<p>en</p>\n",
		},
		{
			name:   "unknown key untouched",
			text:   `{{nonce}} {{lang}}`,
			values: map[string]string{KeyLang: "en", "nonce": "x"},
			want:   "{{nonce}} en",
		},
		{
			name:   "missing value untouched",
			text:   `{{theme}} {{size}}`,
			values: map[string]string{KeySize: "compact"},
			want:   "{{theme}} compact",
		},
		{
			name:   "values are not rescanned",
			text:   `{{action}}`,
			values: map[string]string{KeyAction: "{{lang}}", KeyLang: "en"},
			want:   "{{lang}}",
		},
		{
			name:   "values are literal",
			text:   `{{action}}`,
			values: map[string]string{KeyAction: "$1${0}"},
			want:   "$1${0}",
		},
		{
			name:   "no values",
			text:   `{{lang}}`,
			values: nil,
			want:   "{{lang}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.text, tt.values))
		})
	}
}

func TestParseLayout(t *testing.T) {
	l, err := parseLayout("a[[siteKey]]b[[size]]")
	require.NoError(t, err)

	var values [slotCount]string
	values[slotSiteKey] = "1"
	values[slotSize] = "2"
	assert.Equal(t, "a1b2", l.render(&values))

	_, err = parseLayout("a[[bogus]]")
	assert.Error(t, err)

	_, err = parseLayout("a[[siteKey")
	assert.Error(t, err)
}
