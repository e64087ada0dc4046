// Package password implements Argon2id credential hashing for Ripple using
// a PHC-style encoded string format.
//
// Encoded hashes are treated as untrusted input during Verify: the decoder
// is strict, and verification refuses hashes whose cost parameters exceed
// the configured bounds.
package password
