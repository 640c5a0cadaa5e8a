// Package internal documents the events API internals.
//
// The internal tree is organized by responsibility:
// - api: routing, handlers, middleware and problem responses
// - domain: the event model, identifiers and the CRUD service
// - storage: the JSON document store and its events repository
// - config, metrics, telemetry: shared infrastructure
// - loadtest: traffic generator used against a running server
//
// Code in internal/ is not meant for external import.
package internal
