package nfe

// Supplier is the NF-e emitter (<emit>).
type Supplier struct {
	Name  string `json:"name"`
	TaxID string `json:"tax_id"` // CNPJ
}

// Document carries the identification (<ide>) and grand total (<vNF>).
type Document struct {
	Number     string `json:"number"`
	IssueDate  string `json:"issue_date"`
	TotalValue string `json:"total_value"` // decimal kept verbatim
}

// Installment is one <dup> of the billing schedule (<cobr>).
type Installment struct {
	Number  string `json:"number"`
	Value   string `json:"value"`
	DueDate string `json:"due_date"`
}

// Fields is the structured part of a tax document.
type Fields struct {
	Supplier     Supplier      `json:"supplier"`
	Document     Document      `json:"document"`
	Installments []Installment `json:"installments"`
}

// Record is what Parse returns for every input. Text always holds the decoded source.
type Record struct {
	Fields Fields `json:"nfe"`
	Text   string `json:"texto"`
	// Error is set only when no element tree could be read at all.
	Error string `json:"error,omitempty"`
	// TaxIDRecovered reports that Supplier.TaxID came from the pattern fallback.
	TaxIDRecovered bool `json:"-"`
	// Structural is the tree error the primary path gave up on, if any.
	Structural error `json:"-"`
}

// Failed reports a total parse failure.
func (r Record) Failed() bool { return r.Error != "" }

func emptyFields() Fields {
	return Fields{Installments: []Installment{}}
}
