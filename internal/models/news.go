package models

import "time"

// NewsItem is a published article of type "news".
type NewsItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Excerpt     string    `json:"excerpt"`
	CategoryID  *int64    `json:"category_id"`
	PublishedAt time.Time `json:"-"`
	Status      string    `json:"-"`
	Type        string    `json:"-"`
}

func (n NewsItem) EntityID() int64 { return n.ID }
func (n NewsItem) Label() string   { return n.Title }
func (n NewsItem) Key() string     { return n.Slug }
