// Package config provides environment-based configuration.
//
// Validates required fields and the encryption key format at load time so a
// misconfigured process refuses to start instead of failing later.
package config
