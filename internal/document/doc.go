/*
Package document builds the HTML page that hosts a reCAPTCHA widget inside an
isolated web view.

# Overview

Build is a pure function of three inputs:

  - Params: site key plus optional size, theme, lang and action
  - Endpoints: the script and static asset hostnames
  - Flags: enterprise variant, badge hiding, unset-field handling, diagnostics

The page is assembled from a static markup template with typed slots. After
assembly a single substitution pass resolves {{key}} placeholders for every
present Params field, case-insensitively. Unknown keys are left as they are.

# Embedded protocol

The page carries the lifecycle script (lifecycle.js). Once evaluated it loads
the provider script, renders the widget with render=explicit and posts one
JSON message per lifecycle event to window.ReactNativeWebView:

	{"load": []}
	{"verify": [token]}
	{"expire": [reason]}
	{"error": [detail]}

The host drives the widget through window.rnRecaptcha.execute() and
window.rnRecaptcha.reset() after it has received load. See package protocol
for the Go side of the message schema.

# Usage Example

	doc := document.Build(document.Params{
		SiteKey: key,
		Size:    document.SizeInvisible,
	}, document.DefaultEndpoints(), document.Flags{HideBadge: true})
*/
package document
