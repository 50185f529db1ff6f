package domain

import "time"

// LayerSet is the result of one applied event query, as published to the
// layer-set feed.
type LayerSet struct {
	SessionID string     `json:"session_id"`
	Category  string     `json:"category"`
	Link      string     `json:"link"`
	Query     EventQuery `json:"query"`
	Seq       uint64     `json:"seq"`
	Layers    []Layer    `json:"layers"`
	AppliedAt time.Time  `json:"applied_at"`
}

// NewLayerSet stamps a layer set with the current time.
func NewLayerSet(sessionID, category, link string, q EventQuery, seq uint64, layers []Layer) LayerSet {
	return LayerSet{
		SessionID: sessionID,
		Category:  category,
		Link:      link,
		Query:     q,
		Seq:       seq,
		Layers:    layers,
		AppliedAt: clock.Now().UTC(),
	}
}
