// Package ssh provides the remote executor used to provision fleet machines.
//
// An [Executor] opens authenticated sessions (password or private key) with a
// bounded connect policy. A [Session] runs commands under a command policy and
// always hands back the final attempt's [Result]; callers decide whether a
// non-zero exit is fatal. Sessions can also stream files to the remote host.
package ssh
