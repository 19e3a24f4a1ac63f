package mirror

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/netvault/internal/config"
)

type GDriveMirror struct {
	service  *drive.Service
	folderID string
}

// NewGDrive creates a Google Drive snapshot mirror authenticated with a
// service-account credentials file.
func NewGDrive(cfg *config.MirrorConfig) (*GDriveMirror, error) {
	service, err := drive.NewService(context.Background(),
		option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveMirror{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

func (m *GDriveMirror) Name() string { return "gdrive" }

func (m *GDriveMirror) Upload(ctx context.Context, localPath, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	metadata := &drive.File{
		Name:    remoteName,
		Parents: []string{m.folderID},
	}

	_, err = m.service.Files.Create(metadata).
		Media(file).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return nil
}
