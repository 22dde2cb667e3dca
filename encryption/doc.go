// Package encryption protects configuration secrets at rest (object storage
// keys, SMTP passwords) with AES-256-GCM.
//
// Stored values have four hex fields:
//
//	<salt>:<iv>:<tag>:<ciphertext>
//
// The AES key is derived per value from the master key with PBKDF2-SHA256
// (10000 iterations, 64-byte salt). The IV is 16 bytes and the GCM tag 16
// bytes.
package encryption
