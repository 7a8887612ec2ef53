package journal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
)

const (
	controlAccount = int64(1100)
	offsetAccount  = int64(4100)
)

func buildParams(direction shared.Direction, docType shared.DocumentType) BuildParams {
	return BuildParams{
		Direction:        direction,
		DocumentType:     docType,
		AmountTxn:        decimal.RequireFromString("1000.00"),
		AmountBase:       decimal.RequireFromString("32500.00"),
		ControlAccountID: controlAccount,
		OffsetAccountID:  offsetAccount,
		Currency:         "USD",
		SubledgerRef:     "AR-INVOICE-2024-000001",
	}
}

func TestBuildDocumentLinesSignConventions(t *testing.T) {
	cases := []struct {
		name          string
		direction     shared.Direction
		docType       shared.DocumentType
		controlDebits bool
	}{
		{"AR invoice debits control", shared.DirectionAR, shared.DocTypeInvoice, true},
		{"AR debit note debits control", shared.DirectionAR, shared.DocTypeDebitNote, true},
		{"AR credit note credits control", shared.DirectionAR, shared.DocTypeCreditNote, false},
		{"AR payment credits control", shared.DirectionAR, shared.DocTypePayment, false},
		{"AP invoice credits control", shared.DirectionAP, shared.DocTypeInvoice, false},
		{"AP debit note credits control", shared.DirectionAP, shared.DocTypeDebitNote, false},
		{"AP credit note debits control", shared.DirectionAP, shared.DocTypeCreditNote, true},
		{"AP payment debits control", shared.DirectionAP, shared.DocTypePayment, true},
		{"AP adjustment debits control", shared.DirectionAP, shared.DocTypeAdjustment, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lines, err := BuildDocumentLines(buildParams(tc.direction, tc.docType))
			require.NoError(t, err)
			require.Len(t, lines, 2)

			debit, credit := lines[0], lines[1]
			require.True(t, debit.DebitBase.IsPositive())
			require.True(t, debit.CreditBase.IsZero())
			require.True(t, credit.CreditBase.IsPositive())
			require.True(t, credit.DebitBase.IsZero())

			if tc.controlDebits {
				require.Equal(t, controlAccount, debit.AccountID)
				require.Equal(t, offsetAccount, credit.AccountID)
			} else {
				require.Equal(t, offsetAccount, debit.AccountID)
				require.Equal(t, controlAccount, credit.AccountID)
			}

			require.True(t, debit.AmountTxn.IsPositive())
			require.True(t, credit.AmountTxn.IsNegative())
			require.True(t, debit.AmountTxn.Add(credit.AmountTxn).IsZero())

			totalDebit, totalCredit := Totals(lines)
			require.True(t, totalDebit.Equal(totalCredit))
		})
	}
}

func TestBuildDocumentLinesRejectsControlOffsetCollision(t *testing.T) {
	p := buildParams(shared.DirectionAR, shared.DocTypeInvoice)
	p.OffsetAccountID = p.ControlAccountID
	_, err := BuildDocumentLines(p)
	require.ErrorIs(t, err, shared.ErrControlOffsetCollision)
}

func TestBuildDocumentLinesRejectsBadInput(t *testing.T) {
	p := buildParams(shared.DirectionAR, shared.DocTypeInvoice)
	p.AmountTxn = decimal.Zero
	_, err := BuildDocumentLines(p)
	require.ErrorIs(t, err, shared.ErrValidation)

	p = buildParams("XX", shared.DocTypeInvoice)
	_, err = BuildDocumentLines(p)
	require.ErrorIs(t, err, shared.ErrValidation)

	p = buildParams(shared.DirectionAR, "RECEIPT")
	_, err = BuildDocumentLines(p)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMirrorLinesSwapsSides(t *testing.T) {
	lines, err := BuildDocumentLines(buildParams(shared.DirectionAR, shared.DocTypeInvoice))
	require.NoError(t, err)

	original := make([]Line, len(lines))
	for i, l := range lines {
		original[i] = Line{
			LineNo:       l.LineNo,
			AccountID:    l.AccountID,
			AmountTxn:    l.AmountTxn,
			DebitBase:    l.DebitBase,
			CreditBase:   l.CreditBase,
			Currency:     l.Currency,
			SubledgerRef: l.SubledgerRef,
		}
	}

	mirrored := MirrorLines(original)
	require.Len(t, mirrored, len(original))
	for i, m := range mirrored {
		require.Equal(t, original[i].AccountID, m.AccountID)
		require.True(t, m.DebitBase.Equal(original[i].CreditBase))
		require.True(t, m.CreditBase.Equal(original[i].DebitBase))
		require.True(t, m.AmountTxn.Equal(original[i].AmountTxn.Neg()))
	}
	require.NoError(t, ValidateBalanced(mirrored))
}

func TestValidateBalanced(t *testing.T) {
	require.ErrorIs(t, ValidateBalanced(nil), shared.ErrValidation)

	one := []LineInput{{LineNo: 1, AccountID: 1, DebitBase: decimal.NewFromInt(10)}}
	require.ErrorIs(t, ValidateBalanced(one), shared.ErrValidation)

	unbalanced := []LineInput{
		{LineNo: 1, AccountID: 1, DebitBase: decimal.NewFromInt(10)},
		{LineNo: 2, AccountID: 2, CreditBase: decimal.NewFromInt(9)},
	}
	require.ErrorIs(t, ValidateBalanced(unbalanced), shared.ErrUnbalanced)

	bothSides := []LineInput{
		{LineNo: 1, AccountID: 1, DebitBase: decimal.NewFromInt(10), CreditBase: decimal.NewFromInt(10)},
		{LineNo: 2, AccountID: 2, CreditBase: decimal.NewFromInt(10)},
	}
	require.ErrorIs(t, ValidateBalanced(bothSides), shared.ErrValidation)

	withinEpsilon := []LineInput{
		{LineNo: 1, AccountID: 1, DebitBase: decimal.RequireFromString("10.0000004")},
		{LineNo: 2, AccountID: 2, CreditBase: decimal.RequireFromString("10.0000010")},
	}
	require.NoError(t, ValidateBalanced(withinEpsilon))
}
