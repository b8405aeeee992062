// Package photograde renders photographs through Lightroom-style color and
// tone adjustments.
//
// The package prefers a reference-grade external renderer running in a
// container and falls back to its own numerical engine when the container
// is unreachable, times out, or fails. Rendered outputs are kept in a
// content-addressed file cache keyed by image identity, grade parameters
// and output geometry.
package photograde
