package mirror

import (
	"context"
	"fmt"
	"os"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/semmidev/netvault/internal/config"
)

type S3Mirror struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3 creates an S3 snapshot mirror using AWS SDK v2.
func NewS3(cfg *appconfig.MirrorConfig) (*S3Mirror, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Mirror{
		uploader: s3manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func (m *S3Mirror) Name() string { return "s3" }

func (m *S3Mirror) Upload(ctx context.Context, localPath, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	key := path.Join(m.prefix, remoteName)

	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}
