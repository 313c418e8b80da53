package types

import (
	"time"

	"github.com/google/uuid"
)

// QualityConditionID is a UUIDv7 identifier of a stored parameter bag.
// Time ordering keeps store inserts clustered.
type QualityConditionID string

// NewQualityConditionID generates a UUIDv7 identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewQualityConditionID() QualityConditionID {
	return QualityConditionID(uuid.Must(uuid.NewV7()).String())
}

// ParseQualityConditionID validates and converts a string to QualityConditionID.
func ParseQualityConditionID(s string) (QualityConditionID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return QualityConditionID(s), nil
}

// CreatedAt extracts the timestamp embedded in the ID.
// Returns zero time for IDs that are not valid UUIDs.
func (id QualityConditionID) CreatedAt() time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
