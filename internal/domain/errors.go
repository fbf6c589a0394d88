package domain

import "errors"

var (
	ErrInvalidNudgeID  = errors.New("invalid nudge id")
	ErrInvalidDuration = errors.New("invalid snooze duration")
	ErrInvalidSettings = errors.New("invalid nudge settings")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidRecord   = errors.New("invalid record")
)
