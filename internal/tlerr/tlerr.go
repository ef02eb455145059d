// Package tlerr defines the small set of typed errors the JIT raises
// internally (spec.md §7 "Error Handling Design"). These distinguish
// "fall back to interpretation, nothing is wrong" conditions from genuine
// bugs a caller should log or escalate.
package tlerr

import "errors"

var (
	// ErrAnalysisFailed means the tracelet analyzer gave up mid-stream
	// (spec.md §4.3 step 4, §7 "Analysis failure mid-tracelet"). Not fatal:
	// the caller emits a short pure-interpret request in its place.
	ErrAnalysisFailed = errors.New("tlrun: tracelet analysis failed")

	// ErrTranslationLimitExceeded means a source key's SrcRec has already
	// produced its cap of translations (spec.md §4.6 "Translation limit
	// per source key", §7 "Translation limit hit"). Not fatal: future
	// entries route to a generic interpret-one-basic-block request.
	ErrTranslationLimitExceeded = errors.New("tlrun: translation limit exceeded for source key")

	// ErrWriteLeaseBusy means a request thread failed a non-blocking
	// try-acquire of the write lease (spec.md §4.6 "Write-lease", §5).
	// Not fatal: the caller falls back to interpretation for the current
	// tracelet.
	ErrWriteLeaseBusy = errors.New("tlrun: write lease unavailable")

	// ErrGuardViolation means a speculative type guard failed at runtime
	// (spec.md §4.3 "Prediction", §7 "Speculative guard violation at
	// runtime"). Not fatal: the dispatcher retranslates or falls back.
	ErrGuardViolation = errors.New("tlrun: type guard violated")

	// ErrTraceletTooLong means the hard limit on tracelet length (spec.md
	// §4.3 step 3) was reached mid-analysis.
	ErrTraceletTooLong = errors.New("tlrun: tracelet exceeded maximum length")
)
