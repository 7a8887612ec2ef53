package calendar

import "time"

// BookType enumerates ledger book kinds.
type BookType string

const (
	BookTypeLocal BookType = "LOCAL"
	BookTypeGroup BookType = "GROUP"
)

// Book is a ledger instance tied to a legal entity, with its own base
// currency and fiscal calendar.
type Book struct {
	ID            int64
	TenantID      int64
	LegalEntityID int64
	Type          BookType
	BaseCurrency  string
	CalendarID    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PeriodStatus is the lock state of a (book, period) pair.
type PeriodStatus string

const (
	PeriodStatusOpen       PeriodStatus = "OPEN"
	PeriodStatusSoftClosed PeriodStatus = "SOFT_CLOSED"
	PeriodStatusHardClosed PeriodStatus = "HARD_CLOSED"
)

// FiscalPeriod is a dated sub-range of a fiscal calendar.
type FiscalPeriod struct {
	ID           int64
	CalendarID   int64
	Name         string
	FiscalYear   int
	StartDate    time.Time
	EndDate      time.Time
	IsAdjustment bool
}

// Contains reports whether date falls inside [StartDate, EndDate].
func (p FiscalPeriod) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}
