package errors

import "errors"

// Validation errors. Resolved before any remote call is issued; the user
// corrects the input and retries.
var (
	ErrEmptyName     = errors.New("name must not be empty")
	ErrReservedName  = errors.New("name is reserved")
	ErrDuplicateName = errors.New("an item with this name already exists")
)

// Lookup errors.
var (
	ErrNotFound = errors.New("item not found")
)

// Store/transport errors.
var (
	ErrStoreRequest  = errors.New("store request failed")
	ErrStoreResponse = errors.New("unexpected store response")
)
