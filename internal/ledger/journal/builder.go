package journal

import (
	"github.com/shopspring/decimal"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
)

// BuildParams feeds the two-line document posting construction.
type BuildParams struct {
	Direction        shared.Direction
	DocumentType     shared.DocumentType
	AmountTxn        decimal.Decimal
	AmountBase       decimal.Decimal
	ControlAccountID int64
	OffsetAccountID  int64
	Currency         string
	SubledgerRef     string
	Description      string
}

// BuildDocumentLines maps a document to its balanced debit/credit pair.
//
// Positive-sign types (INVOICE, DEBIT_NOTE) debit the AR control account
// and credit the offset; negative-sign types invert; AP flips the
// polarity relative to AR. Purely computational, no I/O.
func BuildDocumentLines(p BuildParams) ([]LineInput, error) {
	if !p.Direction.Valid() {
		return nil, shared.Validationf("unknown direction %q", p.Direction)
	}
	if !p.DocumentType.Valid() {
		return nil, shared.Validationf("unknown document type %q", p.DocumentType)
	}
	if p.AmountTxn.Sign() <= 0 || p.AmountBase.Sign() <= 0 {
		return nil, shared.Validationf("document amounts must be positive")
	}
	if p.ControlAccountID == p.OffsetAccountID {
		return nil, shared.ErrControlOffsetCollision
	}

	controlDebits := (p.Direction == shared.DirectionAR) == p.DocumentType.PositiveSign()

	debitAccount, creditAccount := p.ControlAccountID, p.OffsetAccountID
	if !controlDebits {
		debitAccount, creditAccount = p.OffsetAccountID, p.ControlAccountID
	}

	lines := []LineInput{
		{
			LineNo:       1,
			AccountID:    debitAccount,
			AmountTxn:    p.AmountTxn,
			DebitBase:    p.AmountBase,
			CreditBase:   decimal.Zero,
			Currency:     p.Currency,
			SubledgerRef: p.SubledgerRef,
			Description:  p.Description,
		},
		{
			LineNo:       2,
			AccountID:    creditAccount,
			AmountTxn:    p.AmountTxn.Neg(),
			DebitBase:    decimal.Zero,
			CreditBase:   p.AmountBase,
			Currency:     p.Currency,
			SubledgerRef: p.SubledgerRef,
			Description:  p.Description,
		},
	}
	if err := ValidateBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// MirrorLines swaps debit and credit on every original line and negates
// the transaction amount. Used for reversal of journals with N lines.
func MirrorLines(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for i, line := range lines {
		out = append(out, LineInput{
			LineNo:       i + 1,
			AccountID:    line.AccountID,
			AmountTxn:    line.AmountTxn.Neg(),
			DebitBase:    line.CreditBase,
			CreditBase:   line.DebitBase,
			Currency:     line.Currency,
			SubledgerRef: line.SubledgerRef,
			Description:  line.Description,
		})
	}
	return out
}

// ValidateBalanced checks that every line carries exactly one positive
// base side and that debit and credit totals agree within epsilon.
func ValidateBalanced(lines []LineInput) error {
	if len(lines) < 2 {
		return shared.Validationf("journal requires at least two lines")
	}
	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for _, line := range lines {
		if line.AccountID == 0 {
			return shared.Validationf("line %d missing account", line.LineNo)
		}
		if line.DebitBase.Sign() < 0 || line.CreditBase.Sign() < 0 {
			return shared.Validationf("line %d has a negative base amount", line.LineNo)
		}
		debit := line.DebitBase.Sign() > 0
		credit := line.CreditBase.Sign() > 0
		if debit == credit {
			return shared.Validationf("line %d must have exactly one of debit or credit", line.LineNo)
		}
		totalDebit = totalDebit.Add(line.DebitBase)
		totalCredit = totalCredit.Add(line.CreditBase)
	}
	if !shared.WithinEpsilon(totalDebit, totalCredit) {
		return shared.ErrUnbalanced
	}
	return nil
}

// Totals sums debit and credit base amounts over lines.
func Totals(lines []LineInput) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.DebitBase)
		credit = credit.Add(line.CreditBase)
	}
	return debit, credit
}
