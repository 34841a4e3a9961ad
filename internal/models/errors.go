package models

import "errors"

// Application-wide standard errors
var (
	// Common resource errors
	ErrNotFound          = errors.New("resource not found")
	ErrCampaignNotFound  = errors.New("campaign definition not found")
	ErrCharacterNotFound = errors.New("character not found")

	// Progression state errors (surfaced, never retried)
	ErrAlreadyActive     = errors.New("user already has an active campaign")
	ErrNoActiveCampaign  = errors.New("no active campaign for user")
	ErrInvalidTransition = errors.New("invalid progression state transition")

	// Transient dependency errors (retried with backoff at the orchestrator boundary)
	ErrStoreUnavailable     = errors.New("narrative store unavailable")
	ErrRetrievalUnavailable = errors.New("vector retrieval unavailable")
	ErrOracleUnavailable    = errors.New("language model oracle unavailable")

	// Turn lock errors
	ErrTurnInProgress = errors.New("another turn is in progress for this campaign")

	// Token errors (auth middleware)
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// General request/server errors
	ErrInvalidInput   = errors.New("invalid input data")
	ErrInternalServer = errors.New("internal server error")
)
