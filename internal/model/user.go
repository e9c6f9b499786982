package model

import "time"

type User struct {
	ID             string    `db:"id"              json:"id"`
	Email          string    `db:"email"           json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	FullName       *string   `db:"full_name"       json:"full_name"`
	CompanyName    *string   `db:"company_name"    json:"company_name"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}
