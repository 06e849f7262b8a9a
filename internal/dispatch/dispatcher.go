package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/nfe-monitor/internal/common"
)

// Dispatcher delivers one payload downstream.
type Dispatcher interface {
	Dispatch(ctx context.Context, p Payload) (Receipt, error)
}

// New builds the dispatcher described by cfg: HTTP when a trigger URL is set, Kafka when
// brokers are set, both fanned out through Multi, and LogDispatcher when neither is.
func New(cfg common.DispatchConfig, logger *slog.Logger) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	var ds []Dispatcher
	if cfg.TriggerURL != "" {
		ds = append(ds, NewHTTPDispatcher(cfg.TriggerURL, &http.Client{Timeout: cfg.Timeout}, logger))
	}
	if len(cfg.KafkaBrokers) > 0 {
		ds = append(ds, NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic, logger))
	}
	switch len(ds) {
	case 0:
		logger.Warn("no dispatch target configured; payloads will only be logged")
		return NewLogDispatcher(logger)
	case 1:
		return ds[0]
	default:
		return Multi(ds...)
	}
}

type multi []Dispatcher

// Multi sends to every dispatcher in order and fails if any of them fails.
func Multi(ds ...Dispatcher) Dispatcher {
	return multi(ds)
}

func (m multi) Dispatch(ctx context.Context, p Payload) (Receipt, error) {
	var (
		out     Receipt
		targets []string
		errs    []error
	)
	for _, d := range m {
		rcpt, err := d.Dispatch(ctx, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if out.Target == "" {
			out = rcpt
		}
		targets = append(targets, rcpt.Target)
	}
	out.Target = strings.Join(targets, "+")
	return out, errors.Join(errs...)
}

// Close releases resources held by d, if any.
func Close(d Dispatcher) error {
	switch v := d.(type) {
	case interface{ Close() error }:
		return v.Close()
	case multi:
		var errs []error
		for _, inner := range v {
			errs = append(errs, Close(inner))
		}
		return errors.Join(errs...)
	}
	return nil
}
