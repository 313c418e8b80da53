package types

import "errors"

// Error classes. Every error returned by the compilers wraps exactly one of
// these, so callers can branch with errors.Is without parsing messages.
var (
	// ErrFormat indicates malformed input text: bad quoting, wrong header
	// layout, skipped hierarchy levels, unparseable cells.
	ErrFormat = errors.New("format error")

	// ErrLookup indicates a name that does not resolve against dataset
	// metadata: unknown dataset, field, code or subtype.
	ErrLookup = errors.New("lookup error")

	// ErrInvariant indicates structurally valid input that violates a
	// semantic rule: asymmetric matrix, unsupported code combination,
	// inconsistent parameter bag.
	ErrInvariant = errors.New("invariant violation")
)

// Specific conditions. Each wraps its class so errors.Is(err, ErrFormat)
// and errors.Is(err, ErrSkippedLevel) both hold.
var (
	// ErrSkippedLevel indicates a hierarchy line deeper than its parent allows.
	ErrSkippedLevel = wrap(ErrFormat, "too many '+'")

	// ErrDatasetNotFound indicates the catalog has no dataset by that name.
	ErrDatasetNotFound = wrap(ErrLookup, "dataset not found")

	// ErrFieldNotFound indicates the dataset has no field by that name.
	ErrFieldNotFound = wrap(ErrLookup, "field not found")

	// ErrCodeNotFound indicates an input that matches no code of the domain.
	ErrCodeNotFound = wrap(ErrLookup, "invalid condition")

	// ErrAmbiguousCode indicates numeric input matching more than one code.
	ErrAmbiguousCode = wrap(ErrLookup, "non-unique condition")

	// ErrSubtypeNotFound indicates a subtype name or code unknown to a class.
	ErrSubtypeNotFound = wrap(ErrLookup, "no such subtype")

	// ErrAsymmetricMatrix indicates an adjacency block whose mirrored cells differ.
	ErrAsymmetricMatrix = wrap(ErrInvariant, "matrix is not symmetric")

	// ErrInvalidParameters indicates a parameter bag of the wrong shape.
	ErrInvalidParameters = wrap(ErrInvariant, "invalid parameters")
)

type classError struct {
	class error
	msg   string
}

func (e *classError) Error() string { return e.msg }
func (e *classError) Unwrap() error { return e.class }

func wrap(class error, msg string) error {
	return &classError{class: class, msg: msg}
}
