/*
Package sandbox runs generated widget documents in an isolated goja
JavaScript runtime, standing in for the web view that hosts them.

# Overview

Each Runtime has:

  - An isolated global scope with require, process and module removed
  - A timeout and context interrupt on every call into the VM
  - A DOM proxy (document.body, createElement, querySelector, appendChild)
  - Console capture, with an optional hook per entry

On top of the runtime, Widget plays the host side of the lifecycle
protocol:

 1. Start evaluates the document's inline script, which injects the
    provider script element
 2. LoadScript or FailScript completes that element's load
 3. SignalReady lets the simulated provider run its ready callbacks, after
    which the document renders the widget and posts load
 4. Execute and Reset call window.rnRecaptcha; Verify, Expire and Fail fire
    the provider callbacks

Messages posted to window.ReactNativeWebView are decoded with package
protocol and mirrored in a protocol.Session.

# Usage Example

	rt, _ := sandbox.New(sandbox.DefaultConfig())
	w, _ := sandbox.NewWidget(rt, doc, nil)
	defer w.Close()

	if err := w.Boot(ctx); err != nil {
		return err
	}
	w.Provider().AutoVerify("token")
	_ = w.Execute(ctx)
	fmt.Println(w.Trace()) // [load verify("token")]

# Pooling

Pool keeps a fixed number of runtimes. Released runtimes get a fresh VM
before reuse, since a document declares top-level constants.
*/
package sandbox
