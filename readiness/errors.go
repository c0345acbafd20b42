package readiness

import "errors"

var (
	// ErrSchemaRequired is returned when no schema inspector is provided.
	ErrSchemaRequired = errors.New("schema inspector required")

	// ErrMachineClosed is returned by Subscribe after Close.
	ErrMachineClosed = errors.New("readiness machine closed")
)
