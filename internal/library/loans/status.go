package loans

import "time"

const day = 24 * time.Hour

// DisplayStatus は読み出し時に毎回計算する表示用の状態
type DisplayStatus struct {
	Status        Status `json:"status"`
	DaysLate      int    `json:"days_late"`
	DaysRemaining int    `json:"days_remaining"`
}

// ComputeDisplayStatus: activo で期限を過ぎたものは atrasado と表示する
func ComputeDisplayStatus(l Loan, now time.Time) DisplayStatus {
	out := DisplayStatus{Status: l.Status}
	if l.Status != StatusActive {
		return out
	}
	if now.After(l.DueDate) {
		out.Status = StatusOverdue
		out.DaysLate = int(now.Sub(l.DueDate) / day)
		return out
	}
	out.DaysRemaining = int(l.DueDate.Sub(now) / day)
	return out
}

// ReservationExpired: 期限ちょうどはまだ有効
func ReservationExpired(l Loan, now time.Time) bool {
	return l.Status == StatusReserved && l.ReservationExpiresAt.Valid && now.After(l.ReservationExpiresAt.Time)
}
