package model

// Quote information labels recognised in the spreadsheet
const (
	LabelResellerContact = "Reseller Contact"
	LabelSalesQuotation  = "Sales Quotation"
	LabelCurrency        = "Currency"
	LabelValidityEndDate = "Validity End Date"
)

// QuoteInfo is the metadata harvested from the quote information section.
// Empty fields were absent (or blank) in the sheet. Labels without a named
// field are kept in Extra.
type QuoteInfo struct {
	ResellerContact string            `json:"reseller_contact,omitempty"`
	SalesQuotation  string            `json:"sales_quotation,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	ValidityEndDate string            `json:"validity_end_date,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// NewQuoteInfo splits a raw label/value mapping into named fields
func NewQuoteInfo(fields map[string]string) QuoteInfo {
	var info QuoteInfo
	for key, value := range fields {
		switch key {
		case LabelResellerContact:
			info.ResellerContact = value
		case LabelSalesQuotation:
			info.SalesQuotation = value
		case LabelCurrency:
			info.Currency = value
		case LabelValidityEndDate:
			info.ValidityEndDate = value
		default:
			if info.Extra == nil {
				info.Extra = make(map[string]string)
			}
			info.Extra[key] = value
		}
	}
	return info
}
