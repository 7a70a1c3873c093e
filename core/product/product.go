package product

import "time"

const (
	StockInStock    = "in_stock"
	StockOutOfStock = "out_of_stock"
)

type Price struct {
	Old int `json:"old"`
	New int `json:"new"`
}

type Stock struct {
	Count  int    `json:"count"`
	Status string `json:"status"`
}

type Image struct {
	URL string `json:"url"`
}

type Tag struct {
	Tag string `json:"tag"`
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       Price     `json:"price"`
	Stock       Stock     `json:"stock"`
	Images      []Image   `json:"images"`
	Tags        []Tag     `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ProductNew struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	PriceOld    int      `json:"priceOld" validate:"gte=0"`
	PriceNew    int      `json:"priceNew" validate:"required,gt=0"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Images      []string `json:"images" validate:"dive,url"`
	Tags        []string `json:"tags"`
}

type StockUp struct {
	Count int `json:"count" validate:"gte=0"`
}

// StockStatus derives the display status of a stock count.
func StockStatus(count int) string {
	if count > 0 {
		return StockInStock
	}
	return StockOutOfStock
}
