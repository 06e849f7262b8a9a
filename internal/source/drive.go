package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/nfe-monitor/constants"
)

const driveListFields = "nextPageToken, files(id, name, mimeType)"

type DriveConfig struct {
	CredentialsFile string // service account JSON; empty uses application default credentials
	FolderID        string
	ProcessedID     string
	PageSize        int64
}

// DriveSource reads the inbox from a Google Drive folder and archives by re-parenting.
type DriveSource struct {
	svc    *drive.Service
	cfg    DriveConfig
	logger *slog.Logger
}

// NewDriveSource builds the Drive client. Extra options are appended after the
// credentials option, so callers can point the client at another endpoint.
func NewDriveSource(ctx context.Context, cfg DriveConfig, logger *slog.Logger, opts ...option.ClientOption) (*DriveSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FolderID == "" || cfg.ProcessedID == "" {
		return nil, errors.New("drive source needs inbox and processed folder ids")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	clientOpts := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		logger.Error("failed to create drive client", "error", err)
		return nil, fmt.Errorf("drive client: %w", err)
	}
	logger.Info("drive source ready", "folder_id", cfg.FolderID, "processed_id", cfg.ProcessedID)
	return &DriveSource{svc: svc, cfg: cfg, logger: logger}, nil
}

// queryEscaper quotes a value for a Drive query string literal.
var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// listQuery selects supported, non-trashed files directly under folderID.
func listQuery(folderID string) string {
	mimes := make([]string, 0, len(constants.SupportedMimeTypes))
	for _, m := range constants.SupportedMimeTypes {
		mimes = append(mimes, fmt.Sprintf("mimeType = '%s'", m))
	}
	id := queryEscaper.Replace(folderID)
	return fmt.Sprintf("'%s' in parents and (%s) and trashed = false", id, strings.Join(mimes, " or "))
}

func (s *DriveSource) List(ctx context.Context) ([]File, error) {
	var out []File
	call := s.svc.Files.List().
		Q(listQuery(s.cfg.FolderID)).
		Fields(driveListFields).
		PageSize(s.cfg.PageSize).
		OrderBy("createdTime").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)
	err := call.Pages(ctx, func(fl *drive.FileList) error {
		for _, f := range fl.Files {
			out = append(out, File{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list drive folder: %w", err)
	}
	s.logger.Debug("drive list", "folder_id", s.cfg.FolderID, "files", len(out))
	return out, nil
}

func (s *DriveSource) Download(ctx context.Context, f File) ([]byte, error) {
	resp, err := s.svc.Files.Get(f.ID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("download %s: file no longer exists: %w", f.ID, err)
		}
		return nil, fmt.Errorf("download %s: %w", f.ID, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			s.logger.Warn("drive download body close error", "file_id", f.ID, "error", err)
		}
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.ID, err)
	}
	return data, nil
}

func (s *DriveSource) Archive(ctx context.Context, f File) error {
	_, err := s.svc.Files.Update(f.ID, &drive.File{}).
		AddParents(s.cfg.ProcessedID).
		RemoveParents(s.cfg.FolderID).
		SupportsAllDrives(true).
		Fields("id, parents").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("move %s to processed folder: %w", f.ID, err)
	}
	s.logger.Info("archived file", "file_id", f.ID, "filename", f.Name, "processed_id", s.cfg.ProcessedID)
	return nil
}
