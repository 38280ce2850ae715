// Package recovery issues human-transcribable recovery codes and uses them as
// a second backup secret for the private key.
//
// A code is four words drawn with replacement from a fixed 50-word list and
// joined with "-". Sealing and opening are the same as for password backups;
// the ciphertext is stored under the server's recovery fields.
package recovery
