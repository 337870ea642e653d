package types

import "time"

// WineDetails optionally describes the wine a tasting session is about.
type WineDetails struct {
	Type    string `json:"type"`
	Vintage int    `json:"vintage"`
	Origin  string `json:"origin"`
}

// TastingRatings is a participant's partial per-category score sheet.
// Absent categories stay nil so a late merge never clobbers them.
type TastingRatings struct {
	Aroma   *int `json:"aroma,omitempty"`
	Taste   *int `json:"taste,omitempty"`
	Balance *int `json:"balance,omitempty"`
	Finish  *int `json:"finish,omitempty"`
	Value   *int `json:"value,omitempty"`
}

// Merge overlays the non-nil categories of in onto r.
func (r *TastingRatings) Merge(in TastingRatings) {
	if in.Aroma != nil {
		r.Aroma = in.Aroma
	}
	if in.Taste != nil {
		r.Taste = in.Taste
	}
	if in.Balance != nil {
		r.Balance = in.Balance
	}
	if in.Finish != nil {
		r.Finish = in.Finish
	}
	if in.Value != nil {
		r.Value = in.Value
	}
}

// Participant is one member of a tasting session. Participants are never
// removed from the roster, only marked disconnected.
type Participant struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Connected bool            `json:"connected"`
	Ratings   *TastingRatings `json:"ratings,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

// TastingSession is the full state owned by one session actor. Active flips
// to false exactly once; an ended session accepts no further mutation.
type TastingSession struct {
	ID           string                  `json:"id"`
	WineName     string                  `json:"wineName"`
	WineDetails  *WineDetails            `json:"wineDetails,omitempty"`
	CreatedBy    string                  `json:"createdBy"`
	Participants map[string]*Participant `json:"participants"`
	CreatedAt    time.Time               `json:"createdAt"`
	Active       bool                    `json:"active"`
}
