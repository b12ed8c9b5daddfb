package auth

import (
	"context"
	"errors"
)

var (
	// ErrFamilyMismatch indicates the record belongs to a different family.
	ErrFamilyMismatch = errors.New("family mismatch")
	// ErrNoFamily indicates the session carries no family partition.
	ErrNoFamily = errors.New("no family in session")
)

// EnsureFamily verifies a loaded record belongs to the session's family.
// Repositories already filter list queries by family; this guards the
// by-id routes, where the id alone would otherwise cross the partition.
func EnsureFamily(ctx context.Context, recordFamilyID string) error {
	familyID := FamilyIDFromContext(ctx)
	if familyID == "" {
		return ErrNoFamily
	}
	if recordFamilyID != familyID {
		return ErrFamilyMismatch
	}
	return nil
}
