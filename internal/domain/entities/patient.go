package entities

import "time"

// Patient is the identity record created at check-in. It is never mutated or
// deleted; notification history keeps pointing at it after the visit ends.
type Patient struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
