package books

import (
	"database/sql"
	"time"
)

// CopyStatus は ejemplar の状態。貸出系の遷移は Ledger 経由でのみ行う
type CopyStatus string

const (
	CopyAvailable    CopyStatus = "disponible"
	CopyLoaned       CopyStatus = "prestado"
	CopyReserved     CopyStatus = "reservado"
	CopyOutOfService CopyStatus = "fuera de servicio"
)

func (s CopyStatus) Valid() bool {
	switch s {
	case CopyAvailable, CopyLoaned, CopyReserved, CopyOutOfService:
		return true
	}
	return false
}

type Origin string

const (
	OriginPurchased Origin = "Comprado"
	OriginDonated   Origin = "Donado"
)

// Book は books テーブルの1行
type Book struct {
	ID           string         `db:"book_id"`
	Title        string         `db:"title"`
	Author       string         `db:"author"`
	ISBN         string         `db:"isbn"`
	Publisher    string         `db:"publisher"`
	CategoryID   string         `db:"category_id"`
	RegisteredAt time.Time      `db:"registered_at"`
	ImageURL     sql.NullString `db:"image_url"`
	Available    bool           `db:"available"`
	SearchKey    string         `db:"search_key"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`

	Copies []Copy `db:"-"`
}

// Copy は book_copies テーブルの1行
type Copy struct {
	ID        string          `db:"copy_id"`
	BookID    string          `db:"book_id"`
	CDU       string          `db:"cdu"`
	Location  string          `db:"location"`
	Building  string          `db:"building"`
	Origin    Origin          `db:"origin"`
	Price     sql.NullFloat64 `db:"price"`
	DonatedBy sql.NullString  `db:"donated_by"`
	Status    CopyStatus      `db:"status"`
	Position  int             `db:"position"`
}

type Category struct {
	ID          string `db:"category_id"`
	Description string `db:"description"`
}

// 一覧の検索条件
type BookFilter struct {
	Query      string // title/author の部分一致（正規化済みキーで比較）
	CategoryID string
	Available  *bool
	Limit      int
	Offset     int
}
