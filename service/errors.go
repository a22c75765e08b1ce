package service

import (
	"errors"
	"fmt"

	"github.com/AnTengye/quotepo/pkg/sheet"
)

var (
	// ErrAuthorization indicates the identity provider returned an error or no code
	ErrAuthorization = errors.New("authorization failed")
	// ErrTokenExchange indicates the code could not be exchanged for an access token
	ErrTokenExchange = errors.New("token exchange failed")
	// ErrTenantDiscovery indicates no tenant is connected to the token
	ErrTenantDiscovery = errors.New("no Xero tenant found")
	// ErrSpreadsheetRead indicates the upload could not be read or interpreted
	ErrSpreadsheetRead = sheet.ErrRead
	// ErrContactResolution indicates a contact could not be found or created
	ErrContactResolution = errors.New("contact resolution failed")
	// ErrSubmission indicates the purchase order was rejected
	ErrSubmission = errors.New("purchase order submission failed")
	// ErrNoPendingOrder indicates send was requested before an upload
	ErrNoPendingOrder = errors.New("no purchase order available, upload a spreadsheet first")
	// ErrNotAuthenticated indicates the session has no access token or tenant
	ErrNotAuthenticated = errors.New("not authorized with Xero")
)

// RemoteRequestError carries a non-2xx response from the Xero API.
// It matches the sentinel given as Kind.
type RemoteRequestError struct {
	Kind       error
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteRequestError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d: %s", e.Kind, e.Op, e.StatusCode, e.Body)
}

func (e *RemoteRequestError) Unwrap() error {
	return e.Kind
}
