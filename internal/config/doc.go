// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides
// type-safe access to the settings the task engine needs (push-queue
// identity, default queue and callback URL, shared secret, local broker)
// while keeping configuration details separate from dispatch logic.
package config
