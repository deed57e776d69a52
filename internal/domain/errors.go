package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the GitHub credential is missing or was rejected.
	ErrUnauthorized = errors.New("github credential rejected")

	// ErrInvalidDaysRange is returned for a window that is not a positive number of days.
	ErrInvalidDaysRange = errors.New("invalid days range")
)

// Operations reported by FetchError.
const (
	OpListPullRequests = "list pull requests"
	OpListReviews      = "list reviews"
	OpViewer           = "resolve viewer"
)

// FetchError is an upstream failure while fetching data, usually for one repository.
type FetchError struct {
	Repo      string
	Operation string
	Number    int // pull request number, zero for repository-level operations
	Err       error
}

func (e *FetchError) Error() string {
	if e.Number > 0 {
		return fmt.Sprintf("failed to %s for %s#%d: %v", e.Operation, e.Repo, e.Number, e.Err)
	}
	if e.Repo != "" {
		return fmt.Sprintf("failed to %s for %s: %v", e.Operation, e.Repo, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
