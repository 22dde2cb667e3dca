// Package httpapi serves the admin portal authentication endpoints.
//
// [New] wires an engine into a chi router. Every JSON failure is rendered
// as {"ok":false,"message":...}; error details are added only outside
// production. Session cookies are set and cleared here, never in the
// engine.
package httpapi
