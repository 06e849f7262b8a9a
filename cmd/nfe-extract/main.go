package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/nfe-monitor/constants"
	"github.com/joseph-ayodele/nfe-monitor/internal/common"
	"github.com/joseph-ayodele/nfe-monitor/internal/dedup"
	"github.com/joseph-ayodele/nfe-monitor/internal/dispatch"
	"github.com/joseph-ayodele/nfe-monitor/internal/ocr"
	"github.com/joseph-ayodele/nfe-monitor/internal/pipeline"
)

// nfe-extract runs one local file through the extraction pipeline and prints the
// payload that would be dispatched. Nothing is sent unless -send is given.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("nfe-extract", flag.ContinueOnError)
	send := fs.Bool("send", false, "dispatch the payload using MCP_TRIGGER_URL / KAFKA_* settings")
	timeout := fs.Duration("timeout", 3*time.Minute, "overall timeout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: nfe-extract [-send] [-timeout d] <file.pdf|file.xml>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	_ = common.LoadDotEnv()
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)
	mime := constants.MimeForExt(filepath.Ext(path))
	if mime == "" {
		logger.Error("unsupported file extension", "path", path)
		return 2
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var dispatcher dispatch.Dispatcher = printDispatcher{w: stdout}
	if *send {
		dispatcher = dispatch.New(cfg.Dispatch, logger)
		defer func() { _ = dispatch.Close(dispatcher) }()
	}

	proc := pipeline.NewProcessor(logger,
		ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger),
		dedup.NewMemoryRegistry(),
		dispatcher,
		nil,
	)

	start := time.Now()
	out, err := proc.Process(ctx, pipeline.RawDocument{
		FileID:   path,
		Filename: filepath.Base(path),
		MimeType: mime,
		Data:     data,
	})
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrUnreadablePDF):
			logger.Error("pdf is unreadable", "error", err)
		case errors.Is(err, ocr.ErrRecognition):
			logger.Error("ocr failed", "error", err)
		default:
			logger.Error("extraction failed", "error", err)
		}
		return 1
	}
	if *send {
		body, err := dispatch.Encode(out.Payload)
		if err == nil {
			err = printJSON(stdout, body)
		}
		if err != nil {
			logger.Warn("could not print sent payload", "error", err)
		}
	}
	logger.Info("extraction OK",
		"content_hash", out.Hash.String(),
		"target", out.Receipt.Target,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return 0
}

// printDispatcher writes the validated payload to w.
type printDispatcher struct {
	w io.Writer
}

func (d printDispatcher) Dispatch(_ context.Context, p dispatch.Payload) (dispatch.Receipt, error) {
	body, err := dispatch.Encode(p)
	if err != nil {
		return dispatch.Receipt{}, err
	}
	if err := printJSON(d.w, body); err != nil {
		return dispatch.Receipt{}, err
	}
	return dispatch.Receipt{Target: "stdout", Status: constants.DispatchStatusLogged}, nil
}

// printJSON indents body in its field order.
func printJSON(w io.Writer, body []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return fmt.Errorf("indent payload: %w", err)
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(w)
	return err
}
