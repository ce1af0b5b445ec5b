// Package storage keeps an append-only journal of delivered notifications.
//
// The journal is an audit trail for operators. It is never read back to
// restore poll state: a restarted bot starts with a fresh cursor and no
// last message.
package storage
