package models

import "time"

// Post с пустым PublishedAt считается черновиком и не попадает в ленту.
type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	AuthorID    int64      `json:"authorId"`
	PublishedAt *time.Time `json:"publishedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (p *Post) IsPublished() bool {
	return p.PublishedAt != nil
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
