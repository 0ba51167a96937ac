package ingest

import "errors"

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrInvalidScore     = errors.New("score must be between 0 and 10")
	ErrLinkNotFound     = errors.New("tracked link not found")
	// ErrUnknownCampaign is returned by event stores when the event's
	// campaign does not exist.
	ErrUnknownCampaign = errors.New("unknown campaign")
)
