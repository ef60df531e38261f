// Package services holds cross-cutting primitives shared by every
// component: error classification markers, the Wrap helper, and
// context keys for task scoped metadata.
package services
