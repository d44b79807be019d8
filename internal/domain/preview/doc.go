// Package preview renders widget documents and plays lifecycle scenarios
// against them in pooled sandboxes.
package preview
