// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import "errors"

var (
	// ErrDuplicateDocument is returned when a source is added twice.
	ErrDuplicateDocument = errors.New("document already in collection")

	// ErrKeyDerivation is returned when no key can be derived from a
	// citation or every suffix of a key is taken.
	ErrKeyDerivation = errors.New("cannot derive citation key")

	// ErrNotText is returned when extracted text fails the text heuristic.
	ErrNotText = errors.New("does not look like a text document")

	// ErrInvalidParameter is returned for inconsistent request parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
)
