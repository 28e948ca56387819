package domain

import "time"

// Token describes an issued bearer token.
type Token struct {
	ID        string
	Subject   string
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
