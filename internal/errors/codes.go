package errors

// Error codes. Stable identifiers logged and matched by errors.Is;
// messages may change, codes must not.
const (
	// CodeNotFound is the generic absent-target code.
	CodeNotFound = "ERR_NOT_FOUND"

	// CodeValidation covers malformed manifests and source specs.
	CodeValidation = "ERR_VALIDATION"

	// CodeFetch covers network/filesystem failures for a single entry.
	CodeFetch = "ERR_FETCH"

	// CodeStore covers persistence failures.
	CodeStore = "ERR_STORE"

	// CodeProvider covers embedding and re-ranking provider failures.
	CodeProvider = "ERR_PROVIDER"
)
