package model

// PurchaseOrder is the document posted to the Xero PurchaseOrders endpoint.
// Field names follow the Xero wire format.
type PurchaseOrder struct {
	Contact         Contact    `json:"Contact"`
	Date            string     `json:"Date"`
	DeliveryDate    string     `json:"DeliveryDate"`
	LineItems       []LineItem `json:"LineItems"`
	DeliveryAddress string     `json:"DeliveryAddress"`
	Reference       string     `json:"Reference"`
	CurrencyCode    string     `json:"CurrencyCode"`
	Status          string     `json:"Status"`
}

type Contact struct {
	ContactID string `json:"ContactID"`
	Name      string `json:"Name"`
}

type LineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode"`
	TaxType     string  `json:"TaxType"`
}

// PurchaseOrder status constants
const (
	StatusDraft = "DRAFT"
)

// Line item defaults for ragged columns
const (
	DefaultQuantity   = 1.0
	DefaultUnitAmount = 0.0
)

// DateLayout is the wire format for order dates
const DateLayout = "2006-01-02"
