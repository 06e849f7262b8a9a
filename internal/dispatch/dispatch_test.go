package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/segmentio/kafka-go"

	"github.com/joseph-ayodele/nfe-monitor/constants"
	"github.com/joseph-ayodele/nfe-monitor/internal/common"
	"github.com/joseph-ayodele/nfe-monitor/internal/nfe"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const testHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func xmlPayload() Payload {
	return Payload{
		FileID:      "f-1",
		Filename:    "nota.xml",
		MimeType:    constants.MimeXML,
		ContentHash: testHash,
		Text:        "<NFe/>",
		NFe: &nfe.Fields{
			Supplier: nfe.Supplier{Name: "ACME", TaxID: "12345678000199"},
			Document: nfe.Document{Number: "42", IssueDate: "2024-01-01", TotalValue: "150.00"},
			Installments: []nfe.Installment{
				{Number: "001", Value: "150.00", DueDate: "2024-01-10"},
			},
		},
	}
}

func TestEncodeValid(t *testing.T) {
	conf := 1.0
	pdf := Payload{
		FileID: "f-2", Filename: "a.pdf", MimeType: constants.MimePDF,
		ContentHash: testHash, Text: "Invoice #123", ExtractionMethod: "pdf-text", Pages: 1,
		OCRConfidence: &conf,
	}
	for name, p := range map[string]Payload{"xml": xmlPayload(), "pdf": pdf} {
		t.Run(name, func(t *testing.T) {
			if _, err := Encode(p); err != nil {
				t.Fatalf("Encode() = %v", err)
			}
		})
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	tests := map[string]func(*Payload){
		"short hash":       func(p *Payload) { p.ContentHash = "abc" },
		"missing file id":  func(p *Payload) { p.FileID = "" },
		"unknown method":   func(p *Payload) { p.ExtractionMethod = "guess" },
		"nil installments": func(p *Payload) { p.NFe.Installments = nil },
		"confidence above one": func(p *Payload) {
			c := 1.5
			p.OCRConfidence = &c
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := xmlPayload()
			mutate(&p)
			_, err := Encode(p)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("Encode() error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestHTTPDispatcher(t *testing.T) {
	var (
		gotBody   Payload
		gotReqID  string
		gotCTType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
		gotCTType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, srv.Client(), discard)
	ctx := common.WithRequestID(context.Background(), "req-7")
	rcpt, err := d.Dispatch(ctx, xmlPayload())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}

	want := Receipt{Target: TargetHTTP, Status: constants.DispatchStatusSent, StatusCode: http.StatusAccepted, RequestID: "req-7"}
	if diff := cmp.Diff(want, rcpt); diff != "" {
		t.Errorf("receipt mismatch (-want +got):\n%s", diff)
	}
	if gotReqID != "req-7" || gotCTType != "application/json" {
		t.Errorf("headers: X-Request-ID=%q Content-Type=%q", gotReqID, gotCTType)
	}
	if diff := cmp.Diff(xmlPayload(), gotBody); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPDispatcherGeneratesRequestID(t *testing.T) {
	var gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
	}))
	defer srv.Close()

	rcpt, err := NewHTTPDispatcher(srv.URL, srv.Client(), discard).Dispatch(context.Background(), xmlPayload())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if gotReqID == "" || gotReqID != rcpt.RequestID {
		t.Errorf("request id header %q, receipt %q", gotReqID, rcpt.RequestID)
	}
}

func TestHTTPDispatcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	rcpt, err := NewHTTPDispatcher(srv.URL, srv.Client(), discard).Dispatch(context.Background(), xmlPayload())
	if err == nil {
		t.Fatal("Dispatch() = nil, want error")
	}
	if rcpt.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", rcpt.StatusCode)
	}
}

func TestHTTPDispatcherDoesNotSendInvalid(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := xmlPayload()
	p.ContentHash = ""
	if _, err := NewHTTPDispatcher(srv.URL, srv.Client(), discard).Dispatch(context.Background(), p); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("Dispatch() error = %v, want ErrInvalidPayload", err)
	}
	if called {
		t.Error("server called for invalid payload")
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaDispatcher(t *testing.T) {
	w := &fakeWriter{}
	d := newKafkaDispatcher("nfe", w, discard)

	ctx := common.WithRequestID(context.Background(), "req-9")
	rcpt, err := d.Dispatch(ctx, xmlPayload())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if rcpt.Target != TargetKafka || rcpt.Status != constants.DispatchStatusSent || rcpt.RequestID != "req-9" {
		t.Errorf("receipt = %+v", rcpt)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != testHash {
		t.Errorf("key = %q, want content hash", w.msgs[0].Key)
	}
	if !bytes.Contains(w.msgs[0].Value, []byte(`"tax_id":"12345678000199"`)) {
		t.Errorf("value = %s", w.msgs[0].Value)
	}
	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["request_id"] != "req-9" || headers["file_id"] != xmlPayload().FileID {
		t.Errorf("headers = %v", headers)
	}

	if err := Close(d); err != nil || !w.closed {
		t.Errorf("Close() = %v, closed = %v", err, w.closed)
	}
}

func TestKafkaDispatcherError(t *testing.T) {
	d := newKafkaDispatcher("nfe", &fakeWriter{err: errors.New("no leader")}, discard)
	if _, err := d.Dispatch(context.Background(), xmlPayload()); err == nil {
		t.Fatal("Dispatch() = nil, want error")
	}
}

func TestLogDispatcher(t *testing.T) {
	var buf bytes.Buffer
	d := NewLogDispatcher(slog.New(slog.NewTextHandler(&buf, nil)))
	rcpt, err := d.Dispatch(context.Background(), xmlPayload())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if rcpt.Status != constants.DispatchStatusLogged {
		t.Errorf("Status = %q, want LOGGED", rcpt.Status)
	}
	if !strings.Contains(buf.String(), "12345678000199") {
		t.Errorf("payload not logged: %s", buf.String())
	}
}

type stubDispatcher struct {
	target string
	err    error
	calls  int
}

func (s *stubDispatcher) Dispatch(context.Context, Payload) (Receipt, error) {
	s.calls++
	if s.err != nil {
		return Receipt{}, s.err
	}
	return Receipt{Target: s.target, Status: constants.DispatchStatusSent}, nil
}

func TestMulti(t *testing.T) {
	a := &stubDispatcher{target: "a"}
	b := &stubDispatcher{target: "b"}
	rcpt, err := Multi(a, b).Dispatch(context.Background(), xmlPayload())
	if err != nil {
		t.Fatalf("Dispatch() = %v", err)
	}
	if rcpt.Target != "a+b" {
		t.Errorf("Target = %q, want a+b", rcpt.Target)
	}

	failing := &stubDispatcher{err: errors.New("down")}
	c := &stubDispatcher{target: "c"}
	if _, err := Multi(failing, c).Dispatch(context.Background(), xmlPayload()); err == nil {
		t.Fatal("Dispatch() = nil, want error when one target fails")
	}
	if c.calls != 1 {
		t.Errorf("second target called %d times, want 1", c.calls)
	}
}

func TestNewSelectsTargets(t *testing.T) {
	if _, ok := New(common.DispatchConfig{}, discard).(*LogDispatcher); !ok {
		t.Error("empty config should log payloads")
	}
	if _, ok := New(common.DispatchConfig{TriggerURL: "http://x"}, discard).(*HTTPDispatcher); !ok {
		t.Error("trigger url should select HTTPDispatcher")
	}
	d := New(common.DispatchConfig{TriggerURL: "http://x", KafkaBrokers: []string{"k:9092"}, KafkaTopic: "t"}, discard)
	if _, ok := d.(multi); !ok {
		t.Errorf("both targets should fan out, got %T", d)
	}
	_ = Close(d)
}
