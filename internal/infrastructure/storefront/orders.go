package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/order"
)

const (
	gmtLayout        = "2006-01-02T15:04:05"
	zeroRateTaxClass = "zero-rate"
	statusNoteFormat = "Marketplace order status: %s"
)

type wcOrderRef struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

type wcAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	Postcode  string `json:"postcode"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type wcKeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wcLineItem struct {
	ProductID   int64        `json:"product_id"`
	VariationID int64        `json:"variation_id,omitempty"`
	Name        string       `json:"name"`
	Quantity    int          `json:"quantity"`
	Subtotal    string       `json:"subtotal"`
	Total       string       `json:"total"`
	TaxClass    string       `json:"tax_class,omitempty"`
	MetaData    []wcKeyValue `json:"meta_data,omitempty"`
}

type wcShippingLine struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

type wcFeeLine struct {
	Name     string `json:"name"`
	Total    string `json:"total"`
	TaxClass string `json:"tax_class,omitempty"`
}

type wcOrderBody struct {
	Status             string           `json:"status"`
	Currency           string           `json:"currency,omitempty"`
	PaymentMethod      string           `json:"payment_method,omitempty"`
	PaymentMethodTitle string           `json:"payment_method_title,omitempty"`
	SetPaid            bool             `json:"set_paid"`
	Billing            *wcAddress       `json:"billing,omitempty"`
	Shipping           *wcAddress       `json:"shipping,omitempty"`
	MetaData           []wcKeyValue     `json:"meta_data,omitempty"`
	LineItems          []wcLineItem     `json:"line_items,omitempty"`
	ShippingLines      []wcShippingLine `json:"shipping_lines,omitempty"`
	FeeLines           []wcFeeLine      `json:"fee_lines,omitempty"`
}

type wcNote struct {
	ID             int64  `json:"id"`
	Note           string `json:"note"`
	DateCreatedGMT string `json:"date_created_gmt"`
}

type wcNoteBody struct {
	Note         string `json:"note"`
	CustomerNote bool   `json:"customer_note"`
}

type wcGateway struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
}

type wcShippingMethod struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type wcStatusTotal struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// CreateShell creates an empty pending order.
func (a *Adapter) CreateShell(ctx context.Context) (*order.LocalOrderRef, error) {
	var ref wcOrderRef
	if err := a.do(ctx, http.MethodPost, "/orders", nil, wcOrderBody{Status: "pending"}, &ref); err != nil {
		return nil, err
	}
	return &order.LocalOrderRef{ID: ref.ID, Number: ref.Number}, nil
}

// Complete writes the order content into the shell, then records the
// marketplace status as a private note.
func (a *Adapter) Complete(ctx context.Context, orderID int64, o *order.LocalOrder) (*order.LocalOrderRef, error) {
	taxClass := ""
	if o.SkipTaxes {
		taxClass = zeroRateTaxClass
	}
	body := wcOrderBody{
		Status:             strings.TrimPrefix(o.Status, "wc-"),
		Currency:           o.Currency,
		PaymentMethod:      o.PaymentMethod,
		PaymentMethodTitle: o.PaymentMethodTitle,
		SetPaid:            o.SetPaid,
		Billing:            toWCAddress(o.Billing),
		Shipping:           toWCAddress(o.Shipping),
	}
	for _, m := range o.Meta {
		body.MetaData = append(body.MetaData, wcKeyValue(m))
	}
	for _, l := range o.Lines {
		item := wcLineItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Subtotal:  money(l.Total),
			Total:     money(l.Total),
			TaxClass:  taxClass,
		}
		if l.VariationID != nil {
			item.VariationID = *l.VariationID
		}
		for k, v := range l.Attributes {
			item.MetaData = append(item.MetaData, wcKeyValue{Key: k, Value: v})
		}
		body.LineItems = append(body.LineItems, item)
	}
	for _, s := range o.ShippingLines {
		body.ShippingLines = append(body.ShippingLines, wcShippingLine{MethodID: s.MethodID, MethodTitle: s.MethodTitle, Total: money(s.Total)})
	}
	for _, f := range o.FeeLines {
		body.FeeLines = append(body.FeeLines, wcFeeLine{Name: f.Name, Total: money(f.Total), TaxClass: taxClass})
	}

	path := fmt.Sprintf("/orders/%d", orderID)
	var query map[string]string
	if !o.SendEmails {
		query = map[string]string{"send_emails": "false"}
	}
	var ref wcOrderRef
	if err := a.do(ctx, http.MethodPut, path, query, body, &ref); err != nil {
		return nil, err
	}

	if o.StatusNote != "" {
		note := wcNoteBody{Note: fmt.Sprintf(statusNoteFormat, o.StatusNote)}
		if err := a.do(ctx, http.MethodPost, path+"/notes", nil, note, nil); err != nil {
			a.logger.Warn("Failed to add status note",
				zap.Int64("order_id", orderID),
				zap.Error(err))
		}
	}
	return &order.LocalOrderRef{ID: ref.ID, Number: ref.Number}, nil
}

// DeleteOrder permanently deletes an order. A missing order is not an error.
func (a *Adapter) DeleteOrder(ctx context.Context, orderID int64) error {
	err := a.do(ctx, http.MethodDelete, fmt.Sprintf("/orders/%d", orderID), map[string]string{"force": "true"}, nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// ListNotes returns the notes of an order, newest first as the store lists them.
func (a *Adapter) ListNotes(ctx context.Context, orderID int64) ([]order.OrderNote, error) {
	var raw []wcNote
	if err := a.get(ctx, fmt.Sprintf("/orders/%d/notes", orderID), map[string]string{"type": "any"}, &raw); err != nil {
		return nil, err
	}
	notes := make([]order.OrderNote, 0, len(raw))
	for _, n := range raw {
		created, _ := time.ParseInLocation(gmtLayout, n.DateCreatedGMT, time.UTC)
		notes = append(notes, order.OrderNote{ID: n.ID, Content: n.Note, CreatedAt: created})
	}
	return notes, nil
}

// PaymentGateways maps enabled gateway ids to their titles.
func (a *Adapter) PaymentGateways(ctx context.Context) (map[string]string, error) {
	var raw []wcGateway
	if err := a.get(ctx, "/payment_gateways", nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for _, g := range raw {
		if g.Enabled {
			out[g.ID] = g.Title
		}
	}
	return out, nil
}

// ShippingMethods maps shipping method ids to their titles.
func (a *Adapter) ShippingMethods(ctx context.Context) (map[string]string, error) {
	var raw []wcShippingMethod
	if err := a.get(ctx, "/shipping_methods", nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for _, m := range raw {
		out[m.ID] = m.Title
	}
	return out, nil
}

// OrderStatuses maps status keys ("wc-" prefixed) to their names.
func (a *Adapter) OrderStatuses(ctx context.Context) (map[string]string, error) {
	var raw []wcStatusTotal
	if err := a.get(ctx, "/reports/orders/totals", nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for _, s := range raw {
		out[order.NormalizeStatus(s.Slug)] = s.Name
	}
	return out, nil
}

func toWCAddress(a order.LocalAddress) *wcAddress {
	w := wcAddress(a)
	return &w
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
