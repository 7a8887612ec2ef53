package fx

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateType enumerates rate table categories. Posting uses SPOT.
type RateType string

const RateTypeSpot RateType = "SPOT"

// Rate is a dated currency-pair rate row. Maintained by rate management
// outside this engine; read-only here.
type Rate struct {
	ID           int64
	TenantID     int64
	RateDate     time.Time
	FromCurrency string
	ToCurrency   string
	RateType     RateType
	Rate         decimal.Decimal
	IsLocked     bool
}

// Source records where an effective rate came from, for audit.
type Source string

const (
	SourceParity   Source = "PARITY"
	SourceFxTable  Source = "FX_TABLE"
	SourceDocument Source = "DOCUMENT"
)

// Result is the resolved FX decision for a document.
type Result struct {
	EffectiveRate decimal.Decimal
	Locked        bool
	ReferenceRate *decimal.Decimal
	OverrideUsed  bool
	Source        Source
}
