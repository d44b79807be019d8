package document

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed lifecycle.js
var lifecycleScript string

// markup is the static shell of every generated document. Slot markers are
// written as [[name]] so they never collide with {{key}} placeholders, which
// are resolved by the substitution pass after assembly.
const markup = `<!DOCTYPE html>
<html lang="{{lang}}">

<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title></title>
    <link rel="preconnect" href="https://[[scriptDomain]]">
    <link rel="preconnect" href="https://[[staticDomain]]" crossorigin>

    <style>
        html,
        body,
        .container {
            height: 100%;
            width: 100%;
            margin: 0;
            padding: 0;
            background-color: transparent;
        }

        .container {
            display: flex;
            justify-content: center;
            align-items: center;
        }
[[badgeRule]]    </style>
</head>

<body>
    <div class="container"></div>
    <script>
    const siteKey = [[siteKey]];
    const size = [[size]];
    const theme = [[theme]];
    const action = [[action]];
    const scriptUrl = [[scriptUrl]];
    const enterprise = [[enterprise]];
    const diagnostics = [[diagnostics]];

[[lifecycle]]    </script>
</body>

</html>
`

// slot names a typed value the builder fills in before substitution.
type slot int

const (
	slotScriptDomain slot = iota
	slotStaticDomain
	slotBadgeRule
	slotSiteKey
	slotSize
	slotTheme
	slotAction
	slotScriptURL
	slotEnterprise
	slotDiagnostics
	slotLifecycle
	slotCount
)

var slotNames = map[string]slot{
	"scriptDomain": slotScriptDomain,
	"staticDomain": slotStaticDomain,
	"badgeRule":    slotBadgeRule,
	"siteKey":      slotSiteKey,
	"size":         slotSize,
	"theme":        slotTheme,
	"action":       slotAction,
	"scriptUrl":    slotScriptURL,
	"enterprise":   slotEnterprise,
	"diagnostics":  slotDiagnostics,
	"lifecycle":    slotLifecycle,
}

// segment is either literal text or a reference to a slot.
type segment struct {
	text   string
	slot   slot
	isSlot bool
}

// layout is a parsed markup template.
type layout struct {
	segments []segment
	size     int
}

var defaultLayout = mustParseLayout(markup)

// parseLayout splits src at every [[name]] marker. Unknown slot names and
// unterminated markers are errors.
func parseLayout(src string) (*layout, error) {
	l := &layout{}
	rest := src
	for {
		start := strings.Index(rest, "[[")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "]]")
		if end < 0 {
			return nil, fmt.Errorf("unterminated slot marker at offset %d", len(src)-len(rest)+start)
		}
		name := rest[start+2 : start+end]
		s, ok := slotNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown slot %q", name)
		}
		if start > 0 {
			l.segments = append(l.segments, segment{text: rest[:start]})
			l.size += start
		}
		l.segments = append(l.segments, segment{slot: s, isSlot: true})
		rest = rest[start+end+2:]
	}
	if rest != "" {
		l.segments = append(l.segments, segment{text: rest})
		l.size += len(rest)
	}
	return l, nil
}

func mustParseLayout(src string) *layout {
	l, err := parseLayout(src)
	if err != nil {
		panic("document: " + err.Error())
	}
	return l
}

// render concatenates the layout with the resolved slot values.
func (l *layout) render(values *[slotCount]string) string {
	n := l.size
	for _, v := range values {
		n += len(v)
	}

	var b strings.Builder
	b.Grow(n)
	for _, seg := range l.segments {
		if seg.isSlot {
			b.WriteString(values[seg.slot])
			continue
		}
		b.WriteString(seg.text)
	}
	return b.String()
}
