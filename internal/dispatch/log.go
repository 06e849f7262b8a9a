package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/joseph-ayodele/nfe-monitor/constants"
)

// LogDispatcher is used when no target is configured: the payload is logged and
// the document still counts as handled.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, p Payload) (Receipt, error) {
	body, err := Encode(p)
	if err != nil {
		return Receipt{}, err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(body)
	}
	d.logger.Info("extracted data (no trigger url configured)", "file_id", p.FileID, "payload", pretty.String())
	return Receipt{Target: TargetLog, Status: constants.DispatchStatusLogged}, nil
}
