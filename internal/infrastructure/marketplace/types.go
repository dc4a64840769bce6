package marketplace

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsync/backend/internal/domain/marketplace"
	"github.com/marketsync/backend/internal/domain/order"
)

// resultSuccess marks a successful response envelope; anything else fails
const resultSuccess = "success"

// envelope wraps every API response
type envelope struct {
	Result string                    `json:"result"`
	Errors []marketplace.ErrorDetail `json:"errors"`
	Data   json.RawMessage           `json:"data"`
}

type orderListRequest struct {
	Filters orderListFilters `json:"filters"`
}

type orderListFilters struct {
	Statuses    []string `json:"status,omitempty"`
	ExcludeTags []string `json:"exclude_tags,omitempty"`
}

type orderListData struct {
	Count  int         `json:"count"`
	Orders []wireOrder `json:"orders"`
}

type wireChannel struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
}

type wireAddress struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Company              string `json:"company"`
	Street               string `json:"street"`
	HouseNumber          string `json:"house_number"`
	HouseNumberExtension string `json:"house_number_extension"`
	AddressNote          string `json:"address_note"`
	Zipcode              string `json:"zipcode"`
	City                 string `json:"city"`
	State                string `json:"state"`
	Country              string `json:"country"`
	Phone                string `json:"phone"`
	Email                string `json:"email"`
}

type wireFee struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type wireProduct struct {
	Identifier int64  `json:"identifier"`
	SKU        string `json:"sku"`
	EAN        string `json:"ean"`
	Title      string `json:"title"`
}

type wireLine struct {
	ID      string          `json:"id"`
	Product wireProduct     `json:"product"`
	Amount  decimal.Decimal `json:"amount"`
	Fees    []wireFee       `json:"fees"`
}

type wireOrder struct {
	Number          string      `json:"number"`
	ChannelNumber   string      `json:"channel_number"`
	Channel         wireChannel `json:"channel"`
	Status          string      `json:"status"`
	Currency        string      `json:"currency"`
	Date            time.Time   `json:"date"`
	Tags            []string    `json:"tags"`
	BillingAddress  wireAddress `json:"billing_address"`
	ShippingAddress wireAddress `json:"shipping_address"`
	Lines           []wireLine  `json:"lines"`
	Fees            []wireFee   `json:"fees"`
}

type orderUpdateRequest struct {
	Updates []wireOrderUpdate `json:"updates"`
}

type wireOrderUpdate struct {
	OrderIdentifierType  string           `json:"order_identifier_type"`
	OrderIdentifier      string           `json:"order_identifier"`
	ConnectionIdentifier string           `json:"connection_identifier,omitempty"`
	ConnectionNumber     string           `json:"connection_number,omitempty"`
	AddTags              []string         `json:"add_tags,omitempty"`
	Lines                []wireLineUpdate `json:"lines,omitempty"`
}

type wireLineUpdate struct {
	LineIdentifierType string  `json:"line_identifier_type"`
	LineIdentifier     string  `json:"line_identifier"`
	Carrier            *string `json:"carrier,omitempty"`
	TrackingNumber     *string `json:"tracking_number,omitempty"`
}

func toDomainFees(fees []wireFee) []order.Fee {
	if len(fees) == 0 {
		return nil
	}
	out := make([]order.Fee, 0, len(fees))
	for _, f := range fees {
		out = append(out, order.Fee{Type: f.Type, Amount: f.Amount})
	}
	return out
}

func (a wireAddress) toDomain() order.Address {
	return order.Address(a)
}

func (w wireOrder) toDomain() order.RemoteOrder {
	o := order.RemoteOrder{
		Number:          w.Number,
		ChannelNumber:   w.ChannelNumber,
		ChannelID:       w.Channel.ID,
		ChannelTitle:    w.Channel.Title,
		ChannelType:     w.Channel.Type,
		ChannelSub:      w.Channel.Subtype,
		Status:          w.Status,
		Currency:        w.Currency,
		Date:            w.Date,
		Tags:            w.Tags,
		BillingAddress:  w.BillingAddress.toDomain(),
		ShippingAddress: w.ShippingAddress.toDomain(),
		Fees:            toDomainFees(w.Fees),
	}
	o.Lines = make([]order.RemoteOrderLine, 0, len(w.Lines))
	for _, l := range w.Lines {
		o.Lines = append(o.Lines, order.RemoteOrderLine{
			ID:                l.ID,
			ProductIdentifier: l.Product.Identifier,
			SKU:               l.Product.SKU,
			EAN:               l.Product.EAN,
			Title:             l.Product.Title,
			Amount:            l.Amount,
			Fees:              toDomainFees(l.Fees),
		})
	}
	return o
}

func fromDomainUpdate(u marketplace.OrderUpdate) wireOrderUpdate {
	w := wireOrderUpdate{
		OrderIdentifierType:  u.IdentifierType,
		OrderIdentifier:      u.OrderNumber,
		ConnectionIdentifier: u.ConnectionIdentifier,
		ConnectionNumber:     u.ConnectionNumber,
		AddTags:              u.AddTags,
	}
	for _, l := range u.Lines {
		w.Lines = append(w.Lines, wireLineUpdate{
			LineIdentifierType: l.IdentifierType,
			LineIdentifier:     l.LineID,
			Carrier:            l.CarrierName,
			TrackingNumber:     l.TrackingNumber,
		})
	}
	return w
}
