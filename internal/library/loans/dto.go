package loans

import "time"

// ---------- requests ----------

type CreateLoanRequest struct {
	BookID   string `json:"book_id" binding:"required"`
	PatronID string `json:"patron_id" binding:"required"`
	LoanType string `json:"loan_type" binding:"required,oneof=estudiante docente otro"`
	// RFC3339 か YYYY-MM-DD。未指定なら貸出日 + 15日
	DueDate string `json:"due_date,omitempty" binding:"omitempty,isodate"`
}

// CreateCopyLoanRequest は ejemplar を指定して貸し出す時
type CreateCopyLoanRequest struct {
	CopyID   string `json:"copy_id" binding:"required"`
	PatronID string `json:"patron_id" binding:"required"`
	LoanType string `json:"loan_type" binding:"required,oneof=estudiante docente otro"`
	DueDate  string `json:"due_date,omitempty" binding:"omitempty,isodate"`
}

type CloseLoanRequest struct {
	ActualReturnDate string `json:"actual_return_date,omitempty" binding:"omitempty,isodate"`
}

type RenewLoanRequest struct {
	NewDueDate string `json:"new_due_date" binding:"required,isodate"`
}

type ReserveRequest struct {
	BookID    string `json:"book_id" binding:"required"`
	PatronID  string `json:"patron_id,omitempty"` // 空なら本人
	ExpiresAt string `json:"expires_at" binding:"required,isodate"`
	LoanType  string `json:"loan_type,omitempty" binding:"omitempty,oneof=estudiante docente otro"`
}

// ---------- responses ----------

type BookSnapshot struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

type CopySnapshot struct {
	CopyID   string `json:"copy_id"`
	CDU      string `json:"cdu"`
	Location string `json:"location"`
	Building string `json:"building"`
	Status   string `json:"status"`
}

type PatronSnapshot struct {
	PatronID string `json:"patron_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type ReservationInfo struct {
	ReservedAt time.Time `json:"reserved_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Expired    bool      `json:"expired"`
}

type NotificationResponse struct {
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

type LoanResponse struct {
	LoanID           string                 `json:"loan_id"`
	Book             BookSnapshot           `json:"book"`
	Copy             *CopySnapshot          `json:"copy,omitempty"`
	Patron           PatronSnapshot         `json:"patron"`
	Status           Status                 `json:"status"`
	Display          DisplayStatus          `json:"display"`
	LoanType         LoanType               `json:"loan_type"`
	LoanDate         time.Time              `json:"loan_date"`
	DueDate          time.Time              `json:"due_date"`
	ActualReturnDate *time.Time             `json:"actual_return_date,omitempty"`
	Reservation      *ReservationInfo       `json:"reservation,omitempty"`
	Notifications    []NotificationResponse `json:"notifications,omitempty"`
}

type LoanListResponse struct {
	Items []LoanResponse `json:"items"`
	Total int            `json:"total"`
}

type SummaryResponse struct {
	Total          int `json:"total"`
	Active         int `json:"active"`
	Overdue        int `json:"overdue"`
	Closed         int `json:"closed"`
	OverduePercent int `json:"overdue_percent"`
}

func toLoanResponse(r LoanRecord, now time.Time) LoanResponse {
	out := LoanResponse{
		LoanID:   r.ID,
		Book:     BookSnapshot{BookID: r.BookID, Title: r.BookTitle, Author: r.BookAuthor, ISBN: r.BookISBN},
		Patron:   PatronSnapshot{PatronID: r.PatronID, Name: r.PatronName, Email: r.PatronEmail},
		Status:   r.Status,
		Display:  ComputeDisplayStatus(r.Loan, now),
		LoanType: r.LoanType,
		LoanDate: r.LoanDate,
		DueDate:  r.DueDate,
	}
	if r.CopyStatus.Valid {
		out.Copy = &CopySnapshot{
			CopyID:   r.CopyID,
			CDU:      r.CopyCDU.String,
			Location: r.CopyLocation.String,
			Building: r.CopyBuilding.String,
			Status:   r.CopyStatus.String,
		}
	}
	if r.ActualReturnDate.Valid {
		t := r.ActualReturnDate.Time
		out.ActualReturnDate = &t
	}
	if r.Status == StatusReserved && r.ReservedAt.Valid && r.ReservationExpiresAt.Valid {
		out.Reservation = &ReservationInfo{
			ReservedAt: r.ReservedAt.Time,
			ExpiresAt:  r.ReservationExpiresAt.Time,
			Expired:    ReservationExpired(r.Loan, now),
		}
	}
	return out
}

func toLoanList(rows []LoanRecord, now time.Time) *LoanListResponse {
	out := &LoanListResponse{Items: make([]LoanResponse, 0, len(rows)), Total: len(rows)}
	for _, r := range rows {
		out.Items = append(out.Items, toLoanResponse(r, now))
	}
	return out
}
