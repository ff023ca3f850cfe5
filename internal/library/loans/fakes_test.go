package loans

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"biblioteca-backend/internal/library/books"
	"biblioteca-backend/internal/library/patrons"
	"biblioteca-backend/internal/platform/textutil"
)

// world は LoanStore / Ledger / PatronDirectory / TxRunner をまとめたインメモリ実装。
// RunInTx は失敗時にスナップショットへ戻す
type world struct {
	loans   map[string]*Loan
	notes   []Notification
	books   map[string]*books.Book
	copies  []*books.Copy
	patrons map[string]*patrons.Patron

	failAppend error
	// interleave は次の Tx の直前に一度だけ走る（他の Tx が先にコミットした状態を作る）
	interleave func()
}

func newWorld() *world {
	return &world{
		loans:   map[string]*Loan{},
		books:   map[string]*books.Book{},
		patrons: map[string]*patrons.Patron{},
	}
}

func (w *world) addBook(id, title string, copies int) {
	w.books[id] = &books.Book{ID: id, Title: title, Author: "Autor " + title, ISBN: "isbn-" + id}
	for i := 1; i <= copies; i++ {
		w.copies = append(w.copies, &books.Copy{
			ID: fmt.Sprintf("%s-C%d", id, i), BookID: id, CDU: "863", Location: "A", Building: "Central",
			Status: books.CopyAvailable, Position: i,
		})
	}
	w.recompute(id)
}

func (w *world) addPatron(id, name, role string, active bool) {
	w.patrons[id] = &patrons.Patron{ID: id, Name: name, Email: strings.ToLower(id) + "@colegio.edu", Role: role, Active: active}
}

func (w *world) copy(id string) *books.Copy {
	for _, c := range w.copies {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (w *world) recompute(bookID string) {
	b := w.books[bookID]
	if b == nil {
		return
	}
	b.Available = false
	for _, c := range w.copies {
		if c.BookID == bookID && c.Status == books.CopyAvailable {
			b.Available = true
		}
	}
}

// ----- TxRunner -----

type snapshot struct {
	loans  map[string]Loan
	notes  []Notification
	books  map[string]books.Book
	copies []books.Copy
}

func (w *world) snap() snapshot {
	s := snapshot{loans: map[string]Loan{}, books: map[string]books.Book{}}
	for k, v := range w.loans {
		s.loans[k] = *v
	}
	s.notes = append(s.notes, w.notes...)
	for k, v := range w.books {
		s.books[k] = *v
	}
	for _, c := range w.copies {
		s.copies = append(s.copies, *c)
	}
	return s
}

func (w *world) restore(s snapshot) {
	w.loans = map[string]*Loan{}
	for k, v := range s.loans {
		v := v
		w.loans[k] = &v
	}
	w.notes = s.notes
	w.books = map[string]*books.Book{}
	for k, v := range s.books {
		v := v
		w.books[k] = &v
	}
	w.copies = nil
	for _, c := range s.copies {
		c := c
		w.copies = append(w.copies, &c)
	}
}

func (w *world) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f := w.interleave; f != nil {
		w.interleave = nil
		f()
	}
	s := w.snap()
	if err := fn(ctx); err != nil {
		w.restore(s)
		return err
	}
	return nil
}

// ----- LoanStore -----

func live(st Status) bool { return st == StatusActive || st == StatusReserved }

func (w *world) Create(_ context.Context, l *Loan) error {
	for _, x := range w.loans {
		if x.CopyID == l.CopyID && live(x.Status) && live(l.Status) {
			return ErrCopyTaken
		}
	}
	cp := *l
	w.loans[l.ID] = &cp
	return nil
}

func (w *world) record(l *Loan) LoanRecord {
	r := LoanRecord{Loan: *l}
	if p := w.patrons[l.PatronID]; p != nil {
		r.PatronName, r.PatronEmail = p.Name, p.Email
	}
	if b := w.books[l.BookID]; b != nil {
		r.BookTitle, r.BookAuthor, r.BookISBN = b.Title, b.Author, b.ISBN
	}
	if c := w.copy(l.CopyID); c != nil {
		r.CopyCDU.String, r.CopyCDU.Valid = c.CDU, true
		r.CopyLocation.String, r.CopyLocation.Valid = c.Location, true
		r.CopyBuilding.String, r.CopyBuilding.Valid = c.Building, true
		r.CopyStatus.String, r.CopyStatus.Valid = string(c.Status), true
	}
	return r
}

func (w *world) GetByID(_ context.Context, id string) (*LoanRecord, error) {
	l, ok := w.loans[id]
	if !ok {
		return nil, nil
	}
	r := w.record(l)
	return &r, nil
}

func matches(w *world, l *Loan, f Filter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			found = found || l.Status == st
		}
		if !found {
			return false
		}
	}
	if f.PatronID != "" && l.PatronID != f.PatronID {
		return false
	}
	if f.CopyID != "" && l.CopyID != f.CopyID {
		return false
	}
	if f.DueBefore != nil && !l.DueDate.Before(*f.DueBefore) {
		return false
	}
	if f.DueFrom != nil && l.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueUntil != nil && l.DueDate.After(*f.DueUntil) {
		return false
	}
	exp := l.ReservationExpiresAt
	if f.ExpiresBefore != nil && (!exp.Valid || !exp.Time.Before(*f.ExpiresBefore)) {
		return false
	}
	if f.ExpiresFrom != nil && (!exp.Valid || exp.Time.Before(*f.ExpiresFrom)) {
		return false
	}
	if f.PatronSearch != "" {
		p := w.patrons[l.PatronID]
		if p == nil || !strings.Contains(textutil.SearchKey(p.Name, p.Email), textutil.Fold(f.PatronSearch)) {
			return false
		}
	}
	return true
}

func (w *world) Find(_ context.Context, f Filter) ([]LoanRecord, error) {
	out := []LoanRecord{}
	for _, l := range w.loans {
		if matches(w, l, f) {
			out = append(out, w.record(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LoanDate.Equal(out[j].LoanDate) {
			return out[i].LoanDate.After(out[j].LoanDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (w *world) Count(ctx context.Context, f Filter) (int, error) {
	rows, err := w.Find(ctx, f)
	return len(rows), err
}

func (w *world) UpdateFields(ctx context.Context, id string, ch Changes, expected Status) (*LoanRecord, error) {
	l, ok := w.loans[id]
	if !ok || (expected != "" && l.Status != expected) {
		return nil, nil
	}
	if ch.Status != nil {
		l.Status = *ch.Status
	}
	if ch.LoanDate != nil {
		l.LoanDate = *ch.LoanDate
	}
	if ch.DueDate != nil {
		l.DueDate = *ch.DueDate
	}
	if ch.ActualReturnDate != nil {
		l.ActualReturnDate.Time, l.ActualReturnDate.Valid = *ch.ActualReturnDate, true
	}
	if ch.ClearReservation {
		l.ReservedAt.Valid = false
		l.ReservationExpiresAt.Valid = false
	}
	return w.GetByID(ctx, id)
}

func (w *world) ExistsActiveForCopy(_ context.Context, copyID string) (bool, error) {
	for _, l := range w.loans {
		if l.CopyID == copyID && live(l.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (w *world) AppendNotification(_ context.Context, n Notification) error {
	if w.failAppend != nil {
		return w.failAppend
	}
	w.notes = append(w.notes, n)
	return nil
}

func (w *world) ListNotifications(_ context.Context, loanID string) ([]Notification, error) {
	var out []Notification
	for _, n := range w.notes {
		if n.LoanID == loanID {
			out = append(out, n)
		}
	}
	return out, nil
}

// ----- Ledger -----

func (w *world) GetBookByID(_ context.Context, id string) (*books.Book, error) {
	b, ok := w.books[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	cp.Copies = nil
	for _, c := range w.copies {
		if c.BookID == id {
			cp.Copies = append(cp.Copies, *c)
		}
	}
	return &cp, nil
}

func (w *world) ListAvailableCopies(_ context.Context, bookID string) ([]books.Copy, error) {
	out := []books.Copy{}
	for _, c := range w.copies {
		if c.BookID == bookID && c.Status == books.CopyAvailable {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (w *world) SetCopyStatus(ctx context.Context, copyID string, st books.CopyStatus) (*books.Book, error) {
	c := w.copy(copyID)
	if c == nil {
		return nil, nil
	}
	c.Status = st
	w.recompute(c.BookID)
	return w.GetBookByID(ctx, c.BookID)
}

func (w *world) FindCopyOwner(ctx context.Context, copyID string) (*books.Book, error) {
	c := w.copy(copyID)
	if c == nil {
		return nil, nil
	}
	return w.GetBookByID(ctx, c.BookID)
}

func (w *world) AllocateCopy(_ context.Context, bookID string, to books.CopyStatus) (*books.Copy, error) {
	for _, c := range w.copies {
		if c.BookID == bookID && c.Status == books.CopyAvailable {
			c.Status = to
			w.recompute(bookID)
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (w *world) TransitionCopyStatus(_ context.Context, copyID string, from, to books.CopyStatus) (bool, error) {
	c := w.copy(copyID)
	if c == nil || c.Status != from {
		return false, nil
	}
	c.Status = to
	w.recompute(c.BookID)
	return true, nil
}

// ----- PatronDirectory は world.patrons を引く -----

type patronDir struct{ w *world }

func (d patronDir) GetByID(_ context.Context, id string) (*patrons.Patron, error) {
	p, ok := d.w.patrons[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// ----- Clock / IDs -----

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type seqIDs struct{ n int }

func (s *seqIDs) NewULID(time.Time) string {
	s.n++
	return fmt.Sprintf("ID%04d", s.n)
}
