package pepperjam

import "encoding/json"

type status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type pagination struct {
	TotalResults int `json:"total_results"`
	TotalPages   int `json:"total_pages"`
}

// envelope is the common response wrapper. Items are kept raw so
// malformed entries can be skipped one by one.
type envelope struct {
	Meta struct {
		Status     status      `json:"status"`
		Pagination *pagination `json:"pagination"`
	} `json:"meta"`
	Data []json.RawMessage `json:"data"`
}

type category struct {
	Name string `json:"name"`
}

// Product is one Pepperjam product creative
type Product struct {
	ID                json.RawMessage `json:"id"`
	ProgramID         json.RawMessage `json:"program_id"`
	ProgramName       string          `json:"program_name"`
	Name              string          `json:"name"`
	DescriptionLong   string          `json:"description_long"`
	DescriptionShort  string          `json:"description_short"`
	Price             json.RawMessage `json:"price"`
	PriceSale         json.RawMessage `json:"price_sale"`
	CurrencySymbol    string          `json:"currency_symbol"`
	BuyURL            string          `json:"buy_url"`
	ImageURL          string          `json:"image_url"`
	StockAvailability *string         `json:"stock_availability"`
	Categories        []category      `json:"categories"`
	SKU               string          `json:"sku"`
	UPC               string          `json:"upc"`
}

// description prefers the long description
func (p Product) description() string {
	if p.DescriptionLong != "" {
		return p.DescriptionLong
	}
	return p.DescriptionShort
}
