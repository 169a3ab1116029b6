package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

// Папки архива, как на сервере: годные и бракованные платы отдельно
const (
	FolderOK = "ok"
	FolderNG = "ng"
)

type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Client архив снимков в MinIO. Только запись.
type Client struct {
	client objectStore
	bucket string
}

func NewMinioClient(endpoint, accessKey, secretKey, bucket string, secure bool) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{client: client, bucket: bucket}, nil
}

func (c *Client) EnsureBucketExists(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// ObjectPath путь объекта платы: ng/<board>.<ext> или ok/<board>.<ext>
func ObjectPath(boardID string, hasDefect bool, ext string) string {
	folder := FolderOK
	if hasDefect {
		folder = FolderNG
	}
	return fmt.Sprintf("%s/%s.%s", folder, boardID, ext)
}

// Record сохраняет снимок и детекции отправленного цикла.
// Циклы без вердикта в архив не попадают.
func (c *Client) Record(ctx context.Context, rec models.InspectionRecord) error {
	if rec.Outcome != models.OutcomeReported || len(rec.Image) == 0 {
		return nil
	}

	if err := c.put(ctx, ObjectPath(rec.BoardID, rec.HasDefect, "jpg"), rec.Image, "image/jpeg"); err != nil {
		return err
	}

	detections := rec.Detections
	if detections == nil {
		detections = []models.Detection{}
	}
	jsonData, err := json.Marshal(detections)
	if err != nil {
		return fmt.Errorf("failed to marshal detections: %w", err)
	}

	return c.put(ctx, ObjectPath(rec.BoardID, rec.HasDefect, "json"), jsonData, "application/json")
}

func (c *Client) put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	_, err := c.client.PutObject(
		ctx,
		c.bucket,
		objectPath,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to save %s to S3: %w", objectPath, err)
	}
	return nil
}
