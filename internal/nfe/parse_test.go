package nfe

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/unicode"
)

const sampleNFe = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe35240112345678000195550010000012341000012345" versao="4.00">
      <ide>
        <cUF>35</cUF>
        <nNF>1234</nNF>
        <dhEmi>2024-01-02T10:30:00-03:00</dhEmi>
      </ide>
      <emit>
        <CNPJ>12345678000195</CNPJ>
        <xNome> ACME Distribuidora LTDA </xNome>
        <enderEmit><xLgr>Rua A</xLgr></enderEmit>
      </emit>
      <dest>
        <CNPJ>98765432000110</CNPJ>
        <xNome>Cliente SA</xNome>
      </dest>
      <total>
        <ICMSTot>
          <vProd>150.00</vProd>
          <vNF>150.00</vNF>
        </ICMSTot>
      </total>
      <cobr>
        <fat><nFat>1234</nFat></fat>
        <dup>
          <nDup>001</nDup>
          <dVenc>2024-01-10</dVenc>
          <vDup>150.00</vDup>
        </dup>
      </cobr>
    </infNFe>
  </NFe>
</nfeProc>`

func TestParseWellFormed(t *testing.T) {
	rec := Parse([]byte(sampleNFe))

	want := Fields{
		Supplier: Supplier{Name: "ACME Distribuidora LTDA", TaxID: "12345678000195"},
		Document: Document{Number: "1234", IssueDate: "2024-01-02T10:30:00-03:00", TotalValue: "150.00"},
		Installments: []Installment{
			{Number: "001", Value: "150.00", DueDate: "2024-01-10"},
		},
	}
	if diff := cmp.Diff(want, rec.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if rec.Failed() || rec.Structural != nil || rec.TaxIDRecovered {
		t.Fatalf("unexpected degradation: %+v", rec)
	}
	if rec.Text != sampleNFe {
		t.Fatal("raw text not preserved")
	}
}

func TestParsePrefixedNamespace(t *testing.T) {
	doc := `<n:NFe xmlns:n="http://example.invalid/nfe-v2"><n:infNFe>
  <n:ide><n:nNF>77</n:nNF><n:dhEmi>2023-05-01</n:dhEmi></n:ide>
  <n:emit><n:CNPJ>11222333000144</n:CNPJ><n:xNome>Prefixada</n:xNome></n:emit>
  <n:total><n:ICMSTot><n:vNF>10.5</n:vNF></n:ICMSTot></n:total>
</n:infNFe></n:NFe>`
	rec := Parse([]byte(doc))

	want := Fields{
		Supplier:     Supplier{Name: "Prefixada", TaxID: "11222333000144"},
		Document:     Document{Number: "77", IssueDate: "2023-05-01", TotalValue: "10.5"},
		Installments: []Installment{},
	}
	if diff := cmp.Diff(want, rec.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInstallments(t *testing.T) {
	doc := `<NFe><infNFe><cobr>
  <dup><nDup>001</nDup><vDup>50.00</vDup><dVenc>2024-02-10</dVenc></dup>
  <dup></dup>
  <dup><nDup>   </nDup></dup>
  <dup><vDup>25.00</vDup></dup>
  <dup><nDup>003</nDup><dVenc>2024-04-10</dVenc></dup>
</cobr></infNFe></NFe>`
	rec := Parse([]byte(doc))

	want := []Installment{
		{Number: "001", Value: "50.00", DueDate: "2024-02-10"},
		{Value: "25.00"},
		{Number: "003", DueDate: "2024-04-10"},
	}
	if diff := cmp.Diff(want, rec.Fields.Installments); diff != "" {
		t.Fatalf("installments mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMissingSubfieldsStayEmpty(t *testing.T) {
	doc := `<NFe><infNFe><emit><xNome>Sem CNPJ</xNome><CPF>12345678901</CPF></emit><ide/></infNFe></NFe>`
	rec := Parse([]byte(doc))

	want := Fields{Supplier: Supplier{Name: "Sem CNPJ"}, Installments: []Installment{}}
	if diff := cmp.Diff(want, rec.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if rec.Failed() {
		t.Fatalf("partial document reported as failed: %s", rec.Error)
	}
}

func TestParseTotalFallsBackToAnyVNF(t *testing.T) {
	doc := `<NFe><infNFe><resumo><vNF>99.90</vNF></resumo></infNFe></NFe>`
	if got := Parse([]byte(doc)).Fields.Document.TotalValue; got != "99.90" {
		t.Fatalf("TotalValue = %q, want 99.90", got)
	}
}

func TestParseRecoversTaxIDWhenPrimaryMissesIt(t *testing.T) {
	// emit carries no CNPJ element of its own; the pattern search finds the first one.
	doc := `<NFe><infNFe><emit><xNome>Fornecedor</xNome></emit><autXML><cnpj>44555666000177</cnpj></autXML></infNFe></NFe>`
	rec := Parse([]byte(doc))

	if rec.Fields.Supplier.TaxID != "44555666000177" || !rec.TaxIDRecovered {
		t.Fatalf("tax id = %q recovered=%v", rec.Fields.Supplier.TaxID, rec.TaxIDRecovered)
	}
	if rec.Fields.Supplier.Name != "Fornecedor" {
		t.Fatalf("primary results dropped: %+v", rec.Fields)
	}
}

func TestParseCorruptedTreeKeepsOnlyTaxID(t *testing.T) {
	doc := `<?xml version="1.0"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe"><NFe><infNFe>
  <ide><nNF>555</nNF></ide>
  <emit><CNPJ>12345678000195</CNPJ><xNome>ACME</xNome></emit>
  <total><ICMSTot><vNF>10.00</vNF></total>
  <cobr><dup><nDup>001</nDup></dup></cobr>
</infNFe></NFe></nfeProc>`
	rec := Parse([]byte(doc))

	want := Fields{Supplier: Supplier{TaxID: "12345678000195"}, Installments: []Installment{}}
	if diff := cmp.Diff(want, rec.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if rec.Structural == nil || !rec.TaxIDRecovered {
		t.Fatalf("expected structural error with recovered tax id, got %+v", rec)
	}
	if rec.Failed() {
		t.Fatalf("corrupted tree must not be a total failure: %s", rec.Error)
	}
}

func TestParseUnclosedDocument(t *testing.T) {
	rec := Parse([]byte(`<NFe><emit><CNPJ>12345678000195</CNPJ><xNome>Cortado`))
	if rec.Structural == nil {
		t.Fatal("expected a structural error for a truncated document")
	}
	if rec.Fields.Supplier.TaxID != "12345678000195" || rec.Fields.Supplier.Name != "" {
		t.Fatalf("fields = %+v", rec.Fields)
	}
}

func TestParseGarbage(t *testing.T) {
	for name, in := range map[string][]byte{
		"binary": {0x00, 0xff, 0xfe, 0x13, 0x37},
		"prose":  []byte("isto não é um xml"),
		"empty":  nil,
		"broken": []byte("<<<>>>"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := Parse(in)
			if !rec.Failed() {
				t.Fatalf("expected total failure, got %+v", rec)
			}
			if diff := cmp.Diff(emptyFields(), rec.Fields); diff != "" {
				t.Fatalf("structured fields not empty:\n%s", diff)
			}
			if len(in) > 0 && rec.Text == "" {
				t.Fatal("best-effort text missing")
			}
		})
	}
}

func TestParseInvalidUTF8IsDecodedLossily(t *testing.T) {
	in := append([]byte("<NFe><emit><xNome>Caf"), 0xe9, 0xff)
	in = append(in, []byte("</xNome></emit></NFe>")...)
	rec := Parse(in)

	if rec.Failed() {
		t.Fatalf("lossy input failed: %s", rec.Error)
	}
	if !strings.Contains(rec.Text, "\uFFFD") {
		t.Fatalf("expected replacement characters in %q", rec.Text)
	}
	if !strings.HasPrefix(rec.Fields.Supplier.Name, "Caf") {
		t.Fatalf("name = %q", rec.Fields.Supplier.Name)
	}
}

func TestParseLatin1Declaration(t *testing.T) {
	in := []byte(`<?xml version="1.0" encoding="ISO-8859-1"?><NFe><emit><xNome>Jo`)
	in = append(in, 0xe3) // ã
	in = append(in, []byte(`o Com`+"\xe9"+`rcio</xNome></emit></NFe>`)...)
	rec := Parse(in)

	if rec.Fields.Supplier.Name != "João Comércio" {
		t.Fatalf("name = %q", rec.Fields.Supplier.Name)
	}
}

func TestParseUTF8BOM(t *testing.T) {
	in := append([]byte{0xef, 0xbb, 0xbf}, []byte(`<NFe><ide><nNF>9</nNF></ide></NFe>`)...)
	rec := Parse(in)
	if rec.Fields.Document.Number != "9" {
		t.Fatalf("number = %q", rec.Fields.Document.Number)
	}
	if strings.HasPrefix(rec.Text, "\ufeff") {
		t.Fatal("BOM kept in decoded text")
	}
}

func TestParseMislabelledUTF16Declaration(t *testing.T) {
	in := `<?xml version="1.0" encoding="UTF-16"?><NFe><emit><CNPJ>12345678000195</CNPJ><xNome>ACME</xNome></emit></NFe>`
	rec := Parse([]byte(in))

	if rec.Failed() {
		t.Fatalf("mislabelled document failed: %s", rec.Error)
	}
	if rec.Text != in {
		t.Fatalf("text not preserved: %q", rec.Text)
	}
	want := Supplier{Name: "ACME", TaxID: "12345678000195"}
	if diff := cmp.Diff(want, rec.Fields.Supplier); diff != "" {
		t.Fatalf("supplier mismatch (-want +got):\n%s", diff)
	}
}

func TestParseUTF16WithBOM(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-16"?><NFe><emit><CNPJ>12345678000195</CNPJ><xNome>Comércio</xNome></emit></NFe>`
	for name, order := range map[string]unicode.Endianness{
		"little endian": unicode.LittleEndian,
		"big endian":    unicode.BigEndian,
	} {
		t.Run(name, func(t *testing.T) {
			in, err := unicode.UTF16(order, unicode.UseBOM).NewEncoder().String(doc)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			rec := Parse([]byte(in))
			if rec.Failed() {
				t.Fatalf("utf-16 document failed: %s", rec.Error)
			}
			if rec.Text != doc {
				t.Fatalf("text = %q", rec.Text)
			}
			if rec.Fields.Supplier.Name != "Comércio" || rec.TaxIDRecovered {
				t.Fatalf("supplier = %+v recovered=%v", rec.Fields.Supplier, rec.TaxIDRecovered)
			}
		})
	}
}

func TestRecordJSONShape(t *testing.T) {
	b, err := json.Marshal(Parse([]byte(`<NFe/>`)))
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	for _, want := range []string{`"installments":[]`, `"tax_id":""`, `"texto":`} {
		if !strings.Contains(got, want) {
			t.Errorf("json %s missing %s", got, want)
		}
	}
	if strings.Contains(got, `"error"`) {
		t.Errorf("error key present on success: %s", got)
	}
}
