package models

// Country is a destination record as stored in the countries table.
type Country struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	FlagIcon        string `json:"flag_icon"`
	FeaturedImage   string `json:"featured_image"`
	BestTimeToVisit string `json:"best_time_to_visit"`
	Status          string `json:"-"`
}

func (c Country) EntityID() string { return c.ID }
func (c Country) Label() string    { return c.Name }
func (c Country) Key() string      { return c.Slug }
