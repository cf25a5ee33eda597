package store

import (
	"errors"
	"net/http"
	"strings"

	"property-catalog/internal/repository"
)

// Kind classifies a failed fetch for the message shown to the user. It
// never changes control flow.
type Kind string

const (
	KindMissingTable      Kind = "missing-table"
	KindInvalidCredential Kind = "invalid-credential"
	KindGeneric           Kind = "generic"
)

var missingTableCodes = map[string]bool{
	"42P01":    true, // postgres undefined_table
	"PGRST205": true, // table absent from the PostgREST schema cache
	"42S02":    true, // mysql ER_NO_SUCH_TABLE
}

var credentialCodes = map[string]bool{
	"PGRST301": true, // JWT rejected by PostgREST
	"PGRST302": true,
	"28P01":    true, // postgres invalid_password
	"28000":    true, // invalid authorization specification, mysql access denied
}

func (k Kind) Message() string {
	switch k {
	case KindMissingTable:
		return `The "properties" table was not found. Has the schema been provisioned on the remote store?`
	case KindInvalidCredential:
		return "The API key used to reach the remote store is invalid or has expired."
	default:
		return "Could not load the catalog. Check your connection and try again."
	}
}

// FetchError is returned by FetchAll and kept until the next successful fetch.
type FetchError struct {
	Kind Kind
	Err  error
}

func (e *FetchError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Classify inspects the code, status and message of a remote failure.
func Classify(err error) Kind {
	if err == nil {
		return KindGeneric
	}

	var remote *repository.RemoteError
	if !errors.As(err, &remote) {
		return KindGeneric
	}

	if missingTableCodes[remote.Code] {
		return KindMissingTable
	}

	message := strings.ToLower(remote.Message)
	if remote.Status == http.StatusUnauthorized || credentialCodes[remote.Code] ||
		strings.Contains(message, "jwt") || strings.Contains(message, "token") || strings.Contains(message, "api key") {
		return KindInvalidCredential
	}

	return KindGeneric
}
