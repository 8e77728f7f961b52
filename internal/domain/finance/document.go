package finance

// DocStatus is the lifecycle status shared by payment, invoice and allocation documents
type DocStatus string

const (
	DocStatusDraft     DocStatus = "DR"
	DocStatusCompleted DocStatus = "CO"
	DocStatusVoided    DocStatus = "VO"
	DocStatusReversed  DocStatus = "RE"
)

// IsValid checks if the status is a known DocStatus
func (s DocStatus) IsValid() bool {
	switch s {
	case DocStatusDraft, DocStatusCompleted, DocStatusVoided, DocStatusReversed:
		return true
	}
	return false
}

// String returns the string representation of DocStatus
func (s DocStatus) String() string {
	return string(s)
}

// CanComplete returns true if a document in this status can be completed
func (s DocStatus) CanComplete() bool {
	return s == DocStatusDraft
}

// Document is anything the DocumentProcessor can drive to Completed
type Document interface {
	DocumentType() string
	GetDocumentNo() string
	GetDocStatus() DocStatus
}
