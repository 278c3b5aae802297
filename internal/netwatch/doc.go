// Package netwatch implements the browser-driven asset discovery engine: it
// attaches to an active Chrome DevTools Protocol page session, reconciles
// the Network and Fetch domains into a single Request Registry, decides an
// interception outcome for every paused request, captures response bodies
// that qualify as reusable visual assets, and detects network idle.
//
// The package intentionally knows nothing about how the page session itself
// was bootstrapped, how captured resources are persisted, or how discovered
// bodies are matched against hostname policy — those are external
// collaborators, injected through the interfaces in collaborators.go.
package netwatch
