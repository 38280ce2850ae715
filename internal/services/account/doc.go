// Package account runs the key custody steps of registration and login:
// generating or restoring the keypair, backing it up under the password and
// a recovery code, and publishing the public key.
package account
