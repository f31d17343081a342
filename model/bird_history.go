package model

import (
	"time"

	"gorm.io/datatypes"
)

// SearchType records how a bird entered the viewing history.
const (
	SearchTypeSearch = "search"
	SearchTypeImage  = "image"
)

/*

BirdHistoryEntry is one bird in a user's viewing history

OwnerID: user owning this history entry
BirdKey: deterministic key derived from the bird's common name, at most one
entry exists per (owner, key) pair

BirdName: common display name
ScientificName: latin binomial
Family: taxonomic family
BirdOrder: taxonomic order ("order" itself is a reserved SQL word)
ImageUrl: representative image
ConservationStatus: IUCN style status string
Habitat: free text habitat description
Distribution: free text range description
Description: free text species description
Confidence: classifier confidence when the entry came from image detection

SearchType: "search" or "image"; once an entry has been confirmed by image
detection it never degrades back to "search"
FirstViewedAt: immutable once set
LastViewedAt: time of the most recent view
ViewCount: number of times the owner viewed this bird, starts at 1

RawData: full payload of the most recent subject snapshot, stored as jsonb
for later inspection without schema migration

*/
type BirdHistoryEntry struct {
	OwnerID            string         `json:"owner_id" gorm:"primaryKey"`
	BirdKey            string         `json:"bird_key" gorm:"primaryKey"`
	BirdName           string         `json:"bird_name"`
	ScientificName     string         `json:"scientific_name"`
	Family             string         `json:"family"`
	BirdOrder          string         `json:"bird_order"`
	ImageUrl           string         `json:"image_url"`
	ConservationStatus string         `json:"conservation_status"`
	Habitat            string         `json:"habitat"`
	Distribution       string         `json:"distribution"`
	Description        string         `json:"description"`
	Confidence         float64        `json:"confidence"`
	SearchType         string         `json:"search_type"`
	FirstViewedAt      time.Time      `json:"first_viewed_at"`
	LastViewedAt       time.Time      `json:"last_viewed_at" gorm:"index"`
	ViewCount          int            `json:"view_count"`
	RawData            datatypes.JSON `json:"-"`
}
