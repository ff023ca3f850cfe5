package books

import "time"

type CreateCopyRequest struct {
	CDU       string   `json:"cdu" binding:"required"`
	Location  string   `json:"location" binding:"required"`
	Building  string   `json:"building" binding:"required"`
	Origin    string   `json:"origin" binding:"omitempty,oneof=Comprado Donado"` // 未指定なら Comprado
	Price     *float64 `json:"price,omitempty" binding:"omitempty,gte=0"`
	DonatedBy string   `json:"donated_by,omitempty"`
}

type CreateBookRequest struct {
	Title        string              `json:"title" binding:"required"`
	Author       string              `json:"author" binding:"required"`
	ISBN         string              `json:"isbn" binding:"required"`
	Publisher    string              `json:"publisher"`
	CategoryID   string              `json:"category_id" binding:"required"`
	RegisteredAt string              `json:"registered_at,omitempty" binding:"omitempty,isodate"`
	ImageURL     string              `json:"image_url,omitempty"`
	Copies       []CreateCopyRequest `json:"copies,omitempty" binding:"omitempty,dive"`
}

type CopyResponse struct {
	CopyID    string   `json:"copy_id"`
	CDU       string   `json:"cdu"`
	Location  string   `json:"location"`
	Building  string   `json:"building"`
	Origin    string   `json:"origin"`
	Price     *float64 `json:"price,omitempty"`
	DonatedBy *string  `json:"donated_by,omitempty"`
	Status    string   `json:"status"`
}

type BookResponse struct {
	BookID       string         `json:"book_id"`
	Title        string         `json:"title"`
	Author       string         `json:"author"`
	ISBN         string         `json:"isbn"`
	Publisher    string         `json:"publisher"`
	CategoryID   string         `json:"category_id"`
	RegisteredAt time.Time      `json:"registered_at"`
	ImageURL     *string        `json:"image_url,omitempty"`
	Available    bool           `json:"available"`
	Copies       []CopyResponse `json:"copies,omitempty"`
}

type BookListResponse struct {
	Items []BookResponse `json:"items"`
	Total int            `json:"total"`
}

func toCopyResponse(c Copy) CopyResponse {
	out := CopyResponse{
		CopyID:   c.ID,
		CDU:      c.CDU,
		Location: c.Location,
		Building: c.Building,
		Origin:   string(c.Origin),
		Status:   string(c.Status),
	}
	if c.Price.Valid {
		p := c.Price.Float64
		out.Price = &p
	}
	if c.DonatedBy.Valid {
		d := c.DonatedBy.String
		out.DonatedBy = &d
	}
	return out
}

func toBookResponse(b *Book) BookResponse {
	out := BookResponse{
		BookID:       b.ID,
		Title:        b.Title,
		Author:       b.Author,
		ISBN:         b.ISBN,
		Publisher:    b.Publisher,
		CategoryID:   b.CategoryID,
		RegisteredAt: b.RegisteredAt,
		Available:    b.Available,
	}
	if b.ImageURL.Valid {
		u := b.ImageURL.String
		out.ImageURL = &u
	}
	for _, c := range b.Copies {
		out.Copies = append(out.Copies, toCopyResponse(c))
	}
	return out
}
