// Package configstore resolves runtime system settings.
//
// A value comes from the system_config table when present (decrypted when
// flagged), else from the environment variable named by the upper-cased
// key, else from the registered default. Secrets are stored encrypted
// with the encryption package.
package configstore
