package metering

import "github.com/metering/backend/internal/domain/shared"

// MeteredOperation identifies a billable operation type
type MeteredOperation string

const (
	// OperationPages meters document pages processed
	OperationPages MeteredOperation = "pages"

	// OperationTranslations meters translation units
	// (one unit = one chunk translated into one target language)
	OperationTranslations MeteredOperation = "translations"
)

// String returns the string representation of MeteredOperation
func (o MeteredOperation) String() string {
	return string(o)
}

// IsValid returns true if the operation is valid
func (o MeteredOperation) IsValid() bool {
	switch o {
	case OperationPages, OperationTranslations:
		return true
	}
	return false
}

// ParseMeteredOperation parses an operation identifier
func ParseMeteredOperation(s string) (MeteredOperation, error) {
	op := MeteredOperation(s)
	if !op.IsValid() {
		return "", shared.NewDomainError("INVALID_OPERATION", "Unknown metered operation")
	}
	return op, nil
}
