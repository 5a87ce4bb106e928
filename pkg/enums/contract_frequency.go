package enums

import (
	"fmt"
	"strings"
)

// ContractFrequency is the service cadence agreed when a contract is signed.
type ContractFrequency string

const (
	ContractFrequencyWeekly   ContractFrequency = "weekly"
	ContractFrequencyBiweekly ContractFrequency = "biweekly"
	ContractFrequencyMonthly  ContractFrequency = "monthly"
)

var validContractFrequencies = []ContractFrequency{
	ContractFrequencyWeekly,
	ContractFrequencyBiweekly,
	ContractFrequencyMonthly,
}

// String implements fmt.Stringer.
func (c ContractFrequency) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ContractFrequency.
func (c ContractFrequency) IsValid() bool {
	for _, candidate := range validContractFrequencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseContractFrequency converts raw input into a ContractFrequency.
func ParseContractFrequency(value string) (ContractFrequency, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validContractFrequencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract frequency %q", value)
}
