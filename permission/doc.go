// Package permission provides a 64-bit permission mask, a permission
// registry, and role composition for authorization checks.
//
// Bit positions are assigned by [Registry.Register] and are stable for the
// lifetime of the process. With a root-reserved registry, bit 63 grants
// every permission. [Portal] returns the USER/ADMIN table used by the
// admin portal.
//
// This package is a pure in-memory data structure with no I/O.
package permission
