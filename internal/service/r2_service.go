package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	cfg "github.com/maheshrc27/postflow/configs"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const maxMediaSize = 50 * 1024 * 1024

var allowedMediaTypes = map[string]struct{}{
	"jpg": {}, "png": {}, "mp4": {}, "mov": {},
}

// ObjectUploader is the subset of the S3 client used for media uploads.
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type MediaService interface {
	Upload(ctx context.Context, userID int64, file *multipart.FileHeader) (string, error)
}

type R2Service struct {
	config   cfg.Config
	uploader ObjectUploader
}

func NewR2Service(c cfg.Config, uploader ObjectUploader) *R2Service {
	return &R2Service{config: c, uploader: uploader}
}

// NewR2Client builds an S3 client pointed at the account's Cloudflare R2 endpoint.
func NewR2Client(ctx context.Context, c cfg.Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	}), nil
}

// Upload stores an image for later publishing and returns its public URL.
func (r *R2Service) Upload(ctx context.Context, userID int64, file *multipart.FileHeader) (string, error) {
	if r.uploader == nil || r.config.R2.BucketName == "" || r.config.R2.PublicURL == "" {
		return "", fmt.Errorf("%w: media storage is not configured", ErrConfiguration)
	}
	if file.Size > maxMediaSize {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrUnsupportedMedia, maxMediaSize)
	}

	f, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	fileBytes, err := io.ReadAll(io.LimitReader(f, maxMediaSize+1))
	if err != nil {
		return "", fmt.Errorf("error reading file content: %w", err)
	}

	kind, err := filetype.Match(fileBytes)
	if err != nil || kind == types.Unknown {
		return "", ErrUnsupportedMedia
	}
	if _, ok := allowedMediaTypes[kind.Extension]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, kind.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	key := fmt.Sprintf("%d/%s.%s", userID, id, kind.Extension)

	if err := r.UploadToR2(ctx, key, fileBytes, kind.MIME.Value); err != nil {
		return "", err
	}
	return strings.TrimRight(r.config.R2.PublicURL, "/") + "/" + key, nil
}

// Function to upload file to Cloudflare R2 Storage
func (r *R2Service) UploadToR2(ctx context.Context, key string, file []byte, filetype string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(filetype),
	}

	_, err := r.uploader.PutObject(ctx, input)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
