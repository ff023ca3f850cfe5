package loans

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeDisplayStatus(t *testing.T) {
	due := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	active := Loan{Status: StatusActive, DueDate: due}

	cases := []struct {
		name string
		loan Loan
		now  time.Time
		want DisplayStatus
	}{
		{"before due", active, due.Add(-50 * time.Hour), DisplayStatus{Status: StatusActive, DaysRemaining: 2}},
		{"exactly due", active, due, DisplayStatus{Status: StatusActive}},
		{"one second late", active, due.Add(time.Second), DisplayStatus{Status: StatusOverdue}},
		{"late floors days", active, due.Add(3*day + 23*time.Hour), DisplayStatus{Status: StatusOverdue, DaysLate: 3}},
		{"closed never overdue", Loan{Status: StatusClosed, DueDate: due}, due.Add(10 * day), DisplayStatus{Status: StatusClosed}},
		{"reservation keeps status", Loan{Status: StatusReserved, DueDate: due}, due.Add(10 * day), DisplayStatus{Status: StatusReserved}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeDisplayStatus(tc.loan, tc.now))
		})
	}
}

func TestReservationExpired(t *testing.T) {
	exp := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	r := Loan{Status: StatusReserved, ReservationExpiresAt: sql.NullTime{Time: exp, Valid: true}}

	assert.False(t, ReservationExpired(r, exp.Add(-time.Minute)))
	assert.False(t, ReservationExpired(r, exp))
	assert.True(t, ReservationExpired(r, exp.Add(time.Nanosecond)))

	r.Status = StatusCancelled
	assert.False(t, ReservationExpired(r, exp.Add(day)))

	assert.False(t, ReservationExpired(Loan{Status: StatusReserved}, exp))
}

func TestParseClasses(t *testing.T) {
	for in, want := range map[string]StatusClass{
		"": ClassAll, "todos": ClassAll, "Activos": ClassActive, "atrasados": ClassOverdue,
		"overdue": ClassOverdue, " cerrados ": ClassClosed,
	} {
		got, ok := ParseStatusClass(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseStatusClass("reservas")
	assert.False(t, ok)

	for in, want := range map[string]ReservationClass{
		"todas": ReservationsAll, "vigentes": ReservationsActive, "EXPIRADAS": ReservationsExpired, "active": ReservationsActive,
	} {
		got, ok := ParseReservationClass(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok = ParseReservationClass("activos")
	assert.False(t, ok)
}
