package enums

import "fmt"

// AssetStatus tracks whether a durable code is usable.
type AssetStatus string

const (
	AssetStatusPending   AssetStatus = "pending"
	AssetStatusAvailable AssetStatus = "available"
	AssetStatusAssigned  AssetStatus = "assigned"
)

var validAssetStatuses = []AssetStatus{
	AssetStatusPending,
	AssetStatusAvailable,
	AssetStatusAssigned,
}

// String implements fmt.Stringer.
func (a AssetStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssetStatus.
func (a AssetStatus) IsValid() bool {
	for _, candidate := range validAssetStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssetStatus converts raw input into an AssetStatus.
func ParseAssetStatus(value string) (AssetStatus, error) {
	for _, candidate := range validAssetStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid asset status %q", value)
}
