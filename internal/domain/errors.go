package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBoardNotFound = errors.New("board not found")
	ErrBoardExists   = errors.New("board already exists")
	ErrAssetNotFound = errors.New("asset not found")
)

// VersionConflictError is returned by a conditional replace whose expected
// tag does not match the stored one. Current carries the tag the caller
// must reconcile against.
type VersionConflictError struct {
	BoardID  string
	Expected VersionTag
	Current  VersionTag
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on board %s: expected %s, current %s",
		e.BoardID, e.Expected, e.Current)
}

func IsVersionConflict(err error) bool {
	var vc *VersionConflictError
	return errors.As(err, &vc)
}
