// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunRequestPasswordReset, etc.)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. The Engine builds the dependency structs once and
// keeps ownership of the stores, limiter, audit dispatcher and metrics.
//
// Flows hold no mutable state between calls, perform no I/O directly, and
// never import the root package.
package flows
