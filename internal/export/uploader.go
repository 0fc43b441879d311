package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/msi-products/capwatch/internal/config"
	"github.com/msi-products/capwatch/internal/logger"
	"github.com/msi-products/capwatch/internal/store"
	"github.com/msi-products/capwatch/internal/utils"
)

const archiveKey = "entries.json"

// Uploader mirrors the entry collection to an S3-compatible bucket (R2)
// whenever it changes. Best-effort: upload failures are logged and the next
// change retries.
type Uploader struct {
	client   *s3.Client
	bucket   string
	store    store.Store
	changed  chan struct{}
	lastHash string
}

func NewUploader(ctx context.Context, cfg *config.Config, st store.Store) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.R2AccessKey, cfg.R2SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2Endpoint)
		o.UsePathStyle = true
	})

	return &Uploader{
		client:  client,
		bucket:  cfg.R2Bucket,
		store:   st,
		changed: make(chan struct{}, 1),
	}, nil
}

// Start subscribes to collection changes and uploads until the context is
// cancelled. Change signals coalesce; uploads never run on the writer's
// goroutine.
func (u *Uploader) Start(ctx context.Context) {
	u.store.Subscribe(func(key string) {
		if key != store.KeyEntries {
			return
		}
		select {
		case u.changed <- struct{}{}:
		default:
		}
	})

	go func() {
		log := logger.Get()
		for {
			select {
			case <-ctx.Done():
				return
			case <-u.changed:
				if err := u.upload(ctx); err != nil {
					log.Error().Err(err).Msg("Archive upload failed")
				}
			}
		}
	}()
}

// upload ships the current collection, skipping when the content is unchanged
// since the last successful upload.
func (u *Uploader) upload(ctx context.Context) error {
	entries, err := u.store.GetEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}

	data, err := RenderJSON(entries)
	if err != nil {
		return err
	}

	hash := utils.Hash(data)
	if hash == u.lastHash {
		return nil
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(archiveKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	u.lastHash = hash
	logger.Get().Info().
		Int("entries", len(entries)).
		Str("bucket", u.bucket).
		Msg("Archive uploaded")
	return nil
}
