// Package nfe extracts supplier, identification, totals and billing schedule from NF-e
// XML documents. Parsing never fails: every input yields a Record, degraded as needed.
package nfe

import (
	"fmt"
	"regexp"
)

// reTaxID matches a 14-digit CNPJ inside its own tag, any case, any namespace prefix.
var reTaxID = regexp.MustCompile(`(?i)<(?:[a-z_][\w.-]*:)?cnpj(?:\s[^>]*)?>\s*(\d{14})\s*</(?:[a-z_][\w.-]*:)?cnpj\s*>`)

// Parse decodes data and extracts the NF-e fields.
//
// A well-formed tree goes through the schema-aware path. A tree that opens but breaks
// later keeps all fields at their defaults. In both cases, if the supplier CNPJ is still
// empty, a pattern search over the raw text recovers it, and only it. Input with no
// readable root element at all comes back with empty fields and Error set.
func Parse(data []byte) Record {
	text := decodeText(data)
	rec := Record{Fields: emptyFields(), Text: text}

	root, err := parseTree(text)
	if root == nil {
		if err == nil {
			err = errNoRoot
		}
		rec.Error = fmt.Sprintf("parse xml: %v", err)
		return rec
	}
	if err != nil {
		rec.Structural = err
	} else {
		rec.Fields = extractFields(root)
	}

	if rec.Structural != nil || rec.Fields.Supplier.TaxID == "" {
		if id := findTaxID(text); id != "" {
			rec.Fields.Supplier.TaxID = id
			rec.TaxIDRecovered = true
		}
	}
	return rec
}

func extractFields(root *node) Fields {
	f := emptyFields()

	if emit := root.find("emit"); emit != nil {
		f.Supplier.Name = emit.value("xNome")
		f.Supplier.TaxID = emit.value("CNPJ")
	}

	if ide := root.find("ide"); ide != nil {
		f.Document.Number = ide.value("nNF")
		f.Document.IssueDate = ide.value("dhEmi")
	}

	total := root.find("total").findPath("ICMSTot", "vNF")
	if total == nil {
		total = root.find("vNF")
	}
	if total != nil {
		f.Document.TotalValue = total.ownText()
	}

	if cobr := root.find("cobr"); cobr != nil {
		for _, dup := range cobr.childrenNamed("dup") {
			inst := Installment{
				Number:  dup.value("nDup"),
				Value:   dup.value("vDup"),
				DueDate: dup.value("dVenc"),
			}
			if inst == (Installment{}) {
				continue
			}
			f.Installments = append(f.Installments, inst)
		}
	}
	return f
}

func findTaxID(text string) string {
	m := reTaxID.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
