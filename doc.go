// Package scanout composes a virtual machine's GPU scanout onto a host
// display.
//
// # Overview
//
// A guest publishes its screen as a texture, either by handle or as a
// DMA-buf, and optionally a cursor image. A Session keeps both bound to
// framebuffers and on every refresh copies the guest into a composition
// target, blends the cursor over it, and hands the result to a Presenter.
//
// # Quick Start
//
//	dev, _ := backend.Open("")
//	h, _ := display.NewHeadless(dev, 1, notifier, scanout.WithResolver(resolver))
//	s := h.Output(0).Session()
//
//	s.OnScanoutTexture(handle, 0, 0, 1024, 768)
//	s.OnCursorTexture(cursor, &scanout.Hotspot{})
//	s.OnCursorPosition(100, 100)
//	s.Refresh() // reads the frame into h.Output(0).Surface()
//
// # Modes
//
// A session is either Disabled, showing the plain host surface if there is
// one, or ScanoutActive. Binding a scanout enables it; a zero-sized scanout
// or ScanoutDisable disables it. Handles that do not resolve and DMA-bufs
// that fail to import are dropped and the session keeps its state.
//
// # Orientation
//
// Render targets and window framebuffers store the bottom row first. Each
// texture declares whether its row 0 is the top; a top-first source is
// flipped exactly once on its way into the target.
//
// # Threading
//
// Sessions are not safe for concurrent use. Call them from one goroutine,
// for example through display.Loop. Allocation failures are fatal: they go
// to the handler set with WithFatalHandler, which panics by default.
package scanout

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
