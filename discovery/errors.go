package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrReferenceShapeNotFound is returned when the file has no reference
	// latitude array. It ends the pass.
	ErrReferenceShapeNotFound = errors.New("reference shape not found")

	// ErrAttributeMissing is returned, wrapped in *AttributeMissingError, for
	// a matched variable lacking an expected attribute. The pass goes on.
	ErrAttributeMissing = errors.New("attribute missing")

	// ErrTemplate is returned for file keys with bad or unknown placeholders.
	ErrTemplate = errors.New("bad file key template")
)

// AttributeMissingError names the variable and the attribute it lacks.
type AttributeMissingError struct {
	Key       string
	Attribute string
}

func (e *AttributeMissingError) Error() string {
	return fmt.Sprintf("%v: %s/attr/%s", ErrAttributeMissing, e.Key, e.Attribute)
}

func (e *AttributeMissingError) Unwrap() error {
	return ErrAttributeMissing
}
