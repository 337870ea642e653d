package types

import "time"

// Ratings scores a wine across five categories. Values are 0-5 where 0 means
// the category has not been rated yet.
type Ratings struct {
	Aroma   int `json:"aroma"`
	Taste   int `json:"taste"`
	Balance int `json:"balance"`
	Finish  int `json:"finish"`
	Value   int `json:"value"`
}

// Average is the mean of the rated categories, ignoring zeroes. Returns 0
// when nothing has been rated.
func (r Ratings) Average() float64 {
	sum, n := 0, 0
	for _, v := range [...]int{r.Aroma, r.Taste, r.Balance, r.Finish, r.Value} {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// WineEntry is one wine in an identity actor's collection.
type WineEntry struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Vintage          int       `json:"vintage"`
	Origin           string    `json:"origin"`
	Winery           string    `json:"winery,omitempty"`
	Varietal         string    `json:"varietal,omitempty"`
	Price            float64   `json:"price,omitempty"`
	PurchaseDate     string    `json:"purchaseDate,omitempty"`
	PurchaseLocation string    `json:"purchaseLocation,omitempty"`
	Ratings          Ratings   `json:"ratings"`
	Notes            string    `json:"notes,omitempty"`
	AverageRating    float64   `json:"averageRating"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// WineUpdate carries a partial update for a wine entry. Nil fields are left
// untouched by the merge.
type WineUpdate struct {
	Name             *string  `json:"name,omitempty"`
	Type             *string  `json:"type,omitempty"`
	Vintage          *int     `json:"vintage,omitempty"`
	Origin           *string  `json:"origin,omitempty"`
	Winery           *string  `json:"winery,omitempty"`
	Varietal         *string  `json:"varietal,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	PurchaseDate     *string  `json:"purchaseDate,omitempty"`
	PurchaseLocation *string  `json:"purchaseLocation,omitempty"`
	Ratings          *Ratings `json:"ratings,omitempty"`
	Notes            *string  `json:"notes,omitempty"`
}

// Apply merges the provided fields over the entry and refreshes the derived
// average. The caller is responsible for stamping UpdatedAt.
func (u WineUpdate) Apply(w *WineEntry) {
	if u.Name != nil {
		w.Name = *u.Name
	}
	if u.Type != nil {
		w.Type = *u.Type
	}
	if u.Vintage != nil {
		w.Vintage = *u.Vintage
	}
	if u.Origin != nil {
		w.Origin = *u.Origin
	}
	if u.Winery != nil {
		w.Winery = *u.Winery
	}
	if u.Varietal != nil {
		w.Varietal = *u.Varietal
	}
	if u.Price != nil {
		w.Price = *u.Price
	}
	if u.PurchaseDate != nil {
		w.PurchaseDate = *u.PurchaseDate
	}
	if u.PurchaseLocation != nil {
		w.PurchaseLocation = *u.PurchaseLocation
	}
	if u.Ratings != nil {
		w.Ratings = *u.Ratings
	}
	if u.Notes != nil {
		w.Notes = *u.Notes
	}
	w.AverageRating = w.Ratings.Average()
}
