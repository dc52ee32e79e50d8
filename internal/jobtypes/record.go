package jobtypes

// Address is a parsed situs or owner mailing address.
type Address struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

// Transfer is the most recent ownership transfer found on a parcel's
// detail page.
type Transfer struct {
	Date                string `json:"date,omitempty"`
	InstrumentOrBookPage string `json:"instrument_or_book_page,omitempty"`
	DeedCode             string `json:"deed_code,omitempty"`
}

// Outcome classifies how a single parcel lookup concluded.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// ScrapedRecord is the transient record produced by a Portal Strategy
// for a single input parcel identifier and consumed by the Label
// Export Pipeline. It is owned by the worker invocation and never
// shared across jobs.
type ScrapedRecord struct {
	ParcelID       string `json:"parcel_id"`
	AlternateID    string `json:"alternate_id,omitempty"`
	OwnerName      string `json:"owner_name,omitempty"`

	OwnerAddress Address `json:"owner_address"`
	SitusAddress Address `json:"situs_address"`

	LegalDescription string `json:"legal_description,omitempty"`
	Transfer         Transfer `json:"transfer"`

	DocumentURL       string `json:"document_url,omitempty"`
	DocumentLocalPath string `json:"document_local_path,omitempty"`

	Outcome  Outcome `json:"outcome"`
	ErrorMsg string  `json:"error_msg,omitempty"`
}

// NewNotFoundRecord builds a ScrapedRecord representing a
// parcel_not_found outcome (spec.md §4.C.3, §7).
func NewNotFoundRecord(parcelID string) *ScrapedRecord {
	return &ScrapedRecord{ParcelID: parcelID, Outcome: OutcomeNotFound}
}

// NewErrorRecord builds a ScrapedRecord representing an extraction or
// navigation error for a single parcel (recoverable; the job
// continues).
func NewErrorRecord(parcelID string, err error) *ScrapedRecord {
	return &ScrapedRecord{ParcelID: parcelID, Outcome: OutcomeError, ErrorMsg: err.Error()}
}

// HasUsableFields reports whether extraction captured at least a
// legal description or an owner name, the minimum bar for a
// successful EXTRACT transition (spec.md §4.C state 4.3).
func (r *ScrapedRecord) HasUsableFields() bool {
	return r.LegalDescription != "" || r.OwnerName != ""
}
