// Package results formats run outcomes into a stable payload and
// delivers them to the configured endpoint over one of three
// transport modes: plain JSON, multipart with the report file, or
// JSON with the report embedded as base64.
package results
