// Package display connects scanout sessions to host outputs.
//
// Headless composes every output into host memory and reports changed
// rectangles through a Notifier. Windowed presents straight into a
// window's default framebuffer and rescales content to the window on
// every draw. Loop runs all session events and refresh ticks on one
// locked OS thread.
package display
