package cj

import "encoding/json"

// graphQLRequest is the POST body sent to the product feed endpoint
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// productsResponse is the envelope of a products query. Items are kept raw
// so malformed entries can be skipped one by one.
type productsResponse struct {
	Data *struct {
		Products *struct {
			TotalCount int               `json:"totalCount"`
			Count      int               `json:"count"`
			ResultList []json.RawMessage `json:"resultList"`
		} `json:"products"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type money struct {
	Amount   json.RawMessage `json:"amount"`
	Currency string          `json:"currency"`
}

// Product is one CJ shopping listing
type Product struct {
	ID                    json.RawMessage `json:"id"`
	AdvertiserID          json.RawMessage `json:"advertiserId"`
	AdvertiserName        string          `json:"advertiserName"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	Price                 *money          `json:"price"`
	SalePrice             *money          `json:"salePrice"`
	ImageLink             string          `json:"imageLink"`
	Link                  string          `json:"link"`
	Brand                 string          `json:"brand"`
	Availability          *string         `json:"availability"`
	MPN                   string          `json:"mpn"`
	GTIN                  string          `json:"gtin"`
	ProductType           []string        `json:"productType"`
	GoogleProductCategory *struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	} `json:"googleProductCategory"`
	LinkCode *struct {
		ClickURL string `json:"clickUrl"`
	} `json:"linkCode"`
}

const productFields = `
        advertiserId
        advertiserName
        id
        title
        description
        price { amount currency }
        imageLink
        link
        brand
        ... on Shopping {
          gtin
          mpn
          availability
          salePrice { amount currency }
          googleProductCategory { id name }
          productType
        }`

const productsQuery = `query Products($companyId: ID!, $partnerIds: [ID!], $keywords: [String!], $limit: Int, $offset: Int) {
  products(companyId: $companyId, partnerIds: $partnerIds, keywords: $keywords, limit: $limit, offset: $offset) {
    totalCount
    count
    resultList {` + productFields + `
    }
  }
}`
