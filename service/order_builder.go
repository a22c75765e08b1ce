package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/model"
	"github.com/AnTengye/quotepo/pkg/logger"
	"github.com/AnTengye/quotepo/pkg/sheet"
)

// Column labels read from the quote sheet
const (
	ColumnItemNumber  = "Item Number"
	ColumnDescription = "Description"
	ColumnQty         = "Qty"
	ColumnUnitPrice   = "Unit Price"
)

// Fallbacks for absent quote information
const (
	DefaultContactName = "Unknown Supplier"
	DefaultReference   = "AutoPO"
)

// deliveryDateLayout is day/month/year; single-digit day and month are accepted
const deliveryDateLayout = sheet.DateLayout

// ContactResolver maps a contact name to its accounting-system id
type ContactResolver interface {
	ResolveContact(ctx context.Context, creds Credentials, name string) (string, error)
}

// OfflineContacts resolves every name to an empty id. Used for previews
// without an authorized session.
type OfflineContacts struct{}

func (OfflineContacts) ResolveContact(context.Context, Credentials, string) (string, error) {
	return "", nil
}

// QuoteColumns are the parallel line-item columns extracted from a sheet.
// ItemNumbers is extracted for completeness but not sent.
type QuoteColumns struct {
	ItemNumbers  []sheet.Value
	Descriptions []sheet.Value
	Quantities   []sheet.Value
	UnitPrices   []sheet.Value
}

// ExtractQuote pulls the line-item columns and the quote information
// section out of grid
func ExtractQuote(grid *sheet.Grid, section string) (QuoteColumns, model.QuoteInfo) {
	cols := QuoteColumns{
		ItemNumbers:  grid.Column(ColumnItemNumber),
		Descriptions: grid.Column(ColumnDescription),
		Quantities:   grid.Column(ColumnQty),
		UnitPrices:   grid.Column(ColumnUnitPrice),
	}
	return cols, model.NewQuoteInfo(grid.Section(section))
}

type OrderBuilder struct {
	config   *config.OrderConfig
	contacts ContactResolver
	now      func() time.Time
}

func NewOrderBuilder(cfg *config.OrderConfig, contacts ContactResolver) *OrderBuilder {
	return &OrderBuilder{
		config:   cfg,
		contacts: contacts,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for issue and fallback delivery dates
func (b *OrderBuilder) WithClock(now func() time.Time) *OrderBuilder {
	b.now = now
	return b
}

// BuildFromGrid extracts the quote from grid and builds the order
func (b *OrderBuilder) BuildFromGrid(ctx context.Context, creds Credentials, grid *sheet.Grid) (*model.PurchaseOrder, error) {
	cols, info := ExtractQuote(grid, b.config.QuoteSection)

	logger.Debug(ctx, "quote extracted",
		"item_numbers", len(cols.ItemNumbers),
		"descriptions", len(cols.Descriptions),
		"quantities", len(cols.Quantities),
		"unit_prices", len(cols.UnitPrices),
		"extra_fields", len(info.Extra),
	)

	return b.Build(ctx, creds, cols, info)
}

// Build combines extracted columns and quote information into a DRAFT
// purchase order, resolving the supplier contact
func (b *OrderBuilder) Build(ctx context.Context, creds Credentials, cols QuoteColumns, info model.QuoteInfo) (*model.PurchaseOrder, error) {
	lineItems, err := b.LineItems(cols)
	if err != nil {
		return nil, err
	}

	today := b.now()

	contactName := orDefault(info.ResellerContact, DefaultContactName)
	contactID, err := b.contacts.ResolveContact(ctx, creds, contactName)
	if err != nil {
		return nil, err
	}

	return &model.PurchaseOrder{
		Contact: model.Contact{
			ContactID: contactID,
			Name:      contactName,
		},
		Date:            today.Format(model.DateLayout),
		DeliveryDate:    DeliveryDate(info.ValidityEndDate, today),
		LineItems:       lineItems,
		DeliveryAddress: b.config.DeliveryAddress,
		Reference:       orDefault(info.SalesQuotation, DefaultReference),
		CurrencyCode:    b.Currency(info.Currency),
		Status:          model.StatusDraft,
	}, nil
}

// LineItems emits one line item per description. Quantity and unit price
// fall back to their defaults when their column is shorter.
func (b *OrderBuilder) LineItems(cols QuoteColumns) ([]model.LineItem, error) {
	items := make([]model.LineItem, 0, len(cols.Descriptions))

	for i, description := range cols.Descriptions {
		quantity, err := numberAt(cols.Quantities, i, model.DefaultQuantity)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d quantity: %v", ErrSpreadsheetRead, i+1, err)
		}

		unitAmount, err := numberAt(cols.UnitPrices, i, model.DefaultUnitAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d unit price: %v", ErrSpreadsheetRead, i+1, err)
		}

		items = append(items, model.LineItem{
			Description: description.String(),
			Quantity:    quantity,
			UnitAmount:  unitAmount,
			AccountCode: b.config.AccountCode,
			TaxType:     b.config.TaxType,
		})
	}

	return items, nil
}

// Currency returns code if it is whitelisted, else the default currency
func (b *OrderBuilder) Currency(code string) string {
	for _, allowed := range b.config.Currencies {
		if code == allowed {
			return code
		}
	}
	return b.config.DefaultCurrency
}

// DeliveryDate converts a day/month/year string to YYYY-MM-DD. Anything
// else, bare numbers included, yields today's date. Date-formatted xlsx cells
// already arrive as day/month/year text from the sheet reader.
func DeliveryDate(raw string, today time.Time) string {
	raw = strings.TrimSpace(raw)

	if t, err := time.Parse(deliveryDateLayout, raw); err == nil {
		return t.Format(model.DateLayout)
	}

	return today.Format(model.DateLayout)
}

func numberAt(values []sheet.Value, i int, fallback float64) (float64, error) {
	if i >= len(values) {
		return fallback, nil
	}
	return values[i].Float()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
