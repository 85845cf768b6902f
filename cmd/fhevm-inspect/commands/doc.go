// Package commands implements the fhevm-inspect command line: resolving the
// session configuration of a network, serving the inspector API, running a
// development node and migrating the signature store schema.
package commands
