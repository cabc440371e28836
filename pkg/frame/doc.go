// Package frame defines the pixel surface shared by the decode pipeline and
// the per-frame delta vocabulary that every codec backend normalizes to.
package frame
