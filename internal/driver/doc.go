// Package driver abstracts the downstream business application the
// pipelines act on. The HTTP client implementation opens a session,
// performs unit actions, and reads account views; pipelines only see
// the Driver interface.
package driver
