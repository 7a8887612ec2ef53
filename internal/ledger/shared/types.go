package shared

// Direction distinguishes receivable from payable documents.
type Direction string

const (
	DirectionAR Direction = "AR"
	DirectionAP Direction = "AP"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionAR || d == DirectionAP
}

// DocumentType is the closed set of subledger document variants. The
// posting sign convention is keyed off this enumeration.
type DocumentType string

const (
	DocTypeInvoice    DocumentType = "INVOICE"
	DocTypeDebitNote  DocumentType = "DEBIT_NOTE"
	DocTypeCreditNote DocumentType = "CREDIT_NOTE"
	DocTypePayment    DocumentType = "PAYMENT"
	DocTypeAdjustment DocumentType = "ADJUSTMENT"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeInvoice, DocTypeDebitNote, DocTypeCreditNote, DocTypePayment, DocTypeAdjustment:
		return true
	}
	return false
}

// PositiveSign reports whether the type belongs to the positive-sign
// group: for AR these debit the control account, for AP they credit it.
func (t DocumentType) PositiveSign() bool {
	switch t {
	case DocTypeInvoice, DocTypeDebitNote:
		return true
	default:
		return false
	}
}

// NamespaceDraft is the provisional numbering namespace shared by all
// document types before posting. Final numbers use the document type as
// namespace.
const NamespaceDraft = "DRAFT"
