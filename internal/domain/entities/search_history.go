package entities

import (
	"time"
)

// SearchHistoryEntry is one recorded search of an authenticated user
type SearchHistoryEntry struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	Region       string    `json:"region" db:"region"`
	PlaceType    string    `json:"placeType" db:"place_type"`
	MinStars     float64   `json:"minStars" db:"min_stars"`
	SearchRadius float64   `json:"searchRadius" db:"search_radius"`
	ResultsCount int       `json:"resultsCount" db:"results_count"`
	Places       []Place   `json:"places" db:"places"`
	SearchedAt   time.Time `json:"searchedAt" db:"searched_at"`
}

// Params returns the search parameters the entry was recorded with
func (e *SearchHistoryEntry) Params() SearchParams {
	return SearchParams{
		Region:       e.Region,
		PlaceType:    e.PlaceType,
		MinStars:     e.MinStars,
		SearchRadius: e.SearchRadius,
	}
}
