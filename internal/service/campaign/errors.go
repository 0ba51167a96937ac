package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotEditable       = errors.New("campaign can no longer be edited")
	ErrNotDeletable      = errors.New("only draft or cancelled campaigns can be deleted")
	ErrNotDispatchable   = errors.New("campaign is already sent or cancelled")
	ErrEmptyAudience     = errors.New("campaign audience is empty")
	ErrInvalidSchedule   = errors.New("schedule time must be in the future")
	ErrInvalidInput      = errors.New("invalid campaign")
)
