package market

import "time"

// Stall is a seller's listing. Quantity never goes below zero: checkout
// decrements it, only the owner restocks it. AverageRating and RatingCount
// are read-only here; no write path in this service touches them.
type Stall struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Product     string `json:"product"`
	Description string `json:"description"`
	Location    string `json:"location"`
	RadiusM     int    `json:"radius_m"`
	Quantity    int    `json:"quantity"`

	PriceCents    int     `json:"price_cents"`
	PriceLevel    int     `json:"price_level"` // 1-4 for $ .. $$$$
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`

	// approximate per serving
	Calories int     `json:"calories"`
	FatG     float64 `json:"fat_g"`
	CarbsG   float64 `json:"carbs_g"`

	Tags      []string `json:"tags"`
	Allergens []string `json:"allergens"`

	Options                []string `json:"options"`  // e.g. "Single meal", "7-day meal prep"
	Includes               []string `json:"includes"` // e.g. "x7 salmon entrees"
	SpecialRequestsAllowed bool     `json:"special_requests_allowed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter narrows listings. Location matches as substring; the geocoding
// service that turns it into proximity is an external collaborator.
type Filter struct {
	Tag      string
	Location string
}
