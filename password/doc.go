// Package password implements password hashing and verification with scrypt.
//
// # Output format
//
// Hashes are stored as two hex fields joined by a colon:
//
//	<salt hex>:<derived key hex>
//
// Cost parameters are not embedded in the stored value; they are fixed
// by [Config] and documented in [DefaultConfig]. Verify derives a key of
// the same length as the stored one, so the key length may change
// without invalidating existing hashes.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy
// (minimum length) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other BinaryStore package.
//   - Return errors from Verify; malformed input is simply "not verified".
package password
