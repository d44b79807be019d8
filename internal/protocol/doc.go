// Package protocol defines the messages a widget document posts to its host
// and the host-side view of the widget lifecycle.
//
// Wire form (one key per message, array value):
//   - {"load": []}
//   - {"verify": [token]}
//   - {"expire": [reason]}
//   - {"error": [detail]}
//
// Decode validates messages against a JSON schema before decoding them.
// Session mirrors the lifecycle state from observed events, relays them to
// an Emitter and gates Execute/Reset until load has been seen.
//
// Example Usage:
//
//	events := protocol.NewQueue(32)
//	session := protocol.NewSession(webviewCommander, events)
//
//	// for every string posted by the web view
//	ev, err := protocol.DecodeString(raw)
//	if err == nil {
//		err = session.Observe(ev)
//	}
package protocol
