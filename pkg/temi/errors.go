package temi

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrNotReady is returned by operations that require a connected service.
	ErrNotReady = errors.New("temi: sdk service is not connected")

	// ErrEmptyLocation is returned when a location name is empty.
	ErrEmptyLocation = errors.New("temi: location can not be empty")

	// ErrEmptyNotificationID is returned when an alert has no notification ID.
	ErrEmptyNotificationID = errors.New("temi: notification id can not be empty")

	// ErrClosed is returned for background work requested after Close.
	ErrClosed = errors.New("temi: robot is closed")
)
