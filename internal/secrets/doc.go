// Package secrets encrypts and decrypts secret files with the age tool,
// encrypting against a shared recipients list and decrypting with the local
// SSH identity.
package secrets
