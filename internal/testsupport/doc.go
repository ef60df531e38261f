// Package testsupport provides shared helpers for package tests:
// temp-rooted configs, store setup, and input fixtures.
package testsupport
