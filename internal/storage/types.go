package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines journal next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery records one notification that reached the chat.
type Delivery struct {
	At      time.Time `json:"at"`
	ChatID  int64     `json:"chat_id"`
	Kind    string    `json:"kind"`
	Cursor  int64     `json:"cursor"`
	Message string    `json:"message"`
}
