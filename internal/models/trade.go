package models

import "gorm.io/gorm"

// Trade execution statuses reported by the order router.
const (
	TradeStatusSubmitted      = "submitted"
	TradeStatusPaperSimulated = "paper_simulated"
	TradeStatusFailed         = "failed"
)

// Trade represents the outcome of routing a confirmed alert to a venue.
// AlertID is a lookup back-reference to the originating Alert.
type Trade struct {
	gorm.Model
	TradeID      string `gorm:"uniqueIndex;not null"`
	AlertID      string `gorm:"index;not null"`
	Venue        string
	VenueOrderID *string
	Symbol       string
	Side         string
	Entry        float64
	Stop         float64
	Targets      string
	Units        float64
	Status       string
	RawResponse  string `gorm:"type:text"`
}
