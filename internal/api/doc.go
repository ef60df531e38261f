// Package api defines the daemon's HTTP wire types and the queue
// service backing its handlers.
package api
