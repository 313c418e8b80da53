// internal/attribute/options.go
package attribute

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/solatis/qamatrix/internal/expr"
)

/*
 * Matrix vocabulary.
 *
 * Three code names carry meaning beyond the domain: the general column
 * ("any other value"), not applicable and unknown. Their spelling differs
 * between data models, so they are options. Synonyms map the free text
 * editors type into code cells onto these names; a zero Options gets the
 * stock names and synonyms.
 */

// Default sentinel names used in matrices.
const (
	DefaultGeneralColumnName      = "<Generell>"
	DefaultNonApplicableValueName = "k_W"
	DefaultUnknownValueName       = "ub"
)

// Options configures sentinel names and synonyms of the attribute matrix.
type Options struct {
	// GeneralColumnName heads the free-condition column and names the
	// "other" code of a domain.
	GeneralColumnName string

	// NonApplicableValueName names the "not applicable" code of a domain.
	NonApplicableValueName string

	// UnknownValueName names the "unknown" code of a domain.
	UnknownValueName string

	// Synonyms maps free text found in code cells to canonical code names.
	// Keys are matched exactly.
	Synonyms map[string]string

	Logger zerolog.Logger
}

// DefaultOptions returns the stock sentinel names and synonyms.
func DefaultOptions() Options {
	return Options{
		GeneralColumnName:      DefaultGeneralColumnName,
		NonApplicableValueName: DefaultNonApplicableValueName,
		UnknownValueName:       DefaultUnknownValueName,
		Synonyms:               DefaultSynonyms(),
		Logger:                 zerolog.Nop(),
	}
}

// DefaultSynonyms returns the stock free-text spellings of the sentinels.
func DefaultSynonyms() map[string]string {
	return map[string]string{
		"kein Wert":     DefaultNonApplicableValueName,
		"unbekannt":     DefaultUnknownValueName,
		"nicht erfasst": expr.NullValue,
	}
}

// withDefaults fills unset names so a zero Options is usable.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if strings.TrimSpace(o.GeneralColumnName) == "" {
		o.GeneralColumnName = d.GeneralColumnName
	}
	if strings.TrimSpace(o.NonApplicableValueName) == "" {
		o.NonApplicableValueName = d.NonApplicableValueName
	}
	if strings.TrimSpace(o.UnknownValueName) == "" {
		o.UnknownValueName = d.UnknownValueName
	}
	if o.Synonyms == nil {
		o.Synonyms = map[string]string{
			"kein Wert":     o.NonApplicableValueName,
			"unbekannt":     o.UnknownValueName,
			"nicht erfasst": expr.NullValue,
		}
	}
	return o
}
