package record

import "time"

// Record is the relational row an uploaded user asset is synchronized into.
type Record struct {
	ID           int64     `json:"id"`
	ExternalID   string    `json:"external_id"`
	EmailAddress string    `json:"email_address"`
	AssetURL     *string   `json:"asset_url,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
