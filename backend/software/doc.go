// Package software implements backend.Device on the CPU.
//
// Textures are *image.RGBA values kept in memory row order. Scaling and
// alpha compositing use golang.org/x/image/draw, so results are exact for
// unscaled copies and opaque or fully transparent overlays.
//
// The device can carry a Window that plays the role of the on-screen
// surface: framebuffer 0 renders into its back buffer and SwapBuffers
// publishes the back buffer, turned right side up, as the front image.
//
// Importing the package registers the device under backend.BackendSoftware.
package software
