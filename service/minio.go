package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// QuoteArchive keeps a copy of each uploaded quote and the order built from it
type QuoteArchive interface {
	Archive(ctx context.Context, prefix, filename string, data []byte, po *model.PurchaseOrder) error
}

type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// UploadFile uploads a file to MINIO under objectName
func (s *MinioService) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	return nil
}

// Archive stores the spreadsheet as prefix/filename and the order as
// prefix/order.json
func (s *MinioService) Archive(ctx context.Context, prefix, filename string, data []byte, po *model.PurchaseOrder) error {
	objectName := path.Join(prefix, path.Base(filepath.ToSlash(filename)))
	if err := s.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), spreadsheetContentType(filename)); err != nil {
		return err
	}

	if po == nil {
		return nil
	}

	orderJSON, err := json.MarshalIndent(po, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	return s.UploadFile(ctx, path.Join(prefix, "order.json"), bytes.NewReader(orderJSON), int64(len(orderJSON)), "application/json")
}

func spreadsheetContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xlsm":
		return "application/vnd.ms-excel.sheet.macroEnabled.12"
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}
