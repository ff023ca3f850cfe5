package patrons

// Patron は patrons テーブルの1行（password_hash は持たない）
type Patron struct {
	ID        string `db:"patron_id"`
	Name      string `db:"name"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
	Role      string `db:"role"`
	Active    bool   `db:"active"`
	SearchKey string `db:"search_key"`
}

type PatronResponse struct {
	PatronID string `json:"patron_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

func toResponse(p Patron) PatronResponse {
	return PatronResponse{PatronID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, Role: p.Role, Active: p.Active}
}
