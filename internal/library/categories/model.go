package categories

// Category は categories テーブルの1行。category_id は利用者が決めるコード（例: NOV, HIS）
type Category struct {
	ID          string `db:"category_id" json:"category_id"`
	Description string `db:"description" json:"description"`
	BookCount   int    `db:"book_count" json:"book_count"`
}

type CreateCategoryRequest struct {
	ID          string `json:"category_id" binding:"required,max=26"`
	Description string `json:"description" binding:"required"`
}

type UpdateCategoryRequest struct {
	Description string `json:"description" binding:"required"`
}
