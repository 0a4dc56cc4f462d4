package domain

import "errors"

var (
	ErrSlotNotFound       = errors.New("slot not found")
	ErrNoResolution       = errors.New("no quota slot resolved")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrLockHeld           = errors.New("refresh already in progress")
	ErrSourceNotFound     = errors.New("data source not found")
)
