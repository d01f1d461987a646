package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/charmbracelet/log"
)

// PutObjectAPI is the slice of the S3 client the saver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Saver struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
}

func (s *S3Saver) Save(ctx context.Context, params SaveParams) (string, error) {
	key := s.key(params)
	log.With("component", "store").Debug("uploading export", "bucket", s.Bucket, "key", key, "bytes", len(params.Data))

	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.Bucket),
		Key:          aws.String(key),
		ContentType:  aws.String(params.ContentType),
		Body:         bytes.NewReader(params.Data),
		Metadata:     params.Metadata,
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.Bucket, key), nil
}

func (s *S3Saver) key(params SaveParams) string {
	parts := []string{strings.Trim(s.Prefix, "/")}
	for _, key := range []string{"session", "job"} {
		if v := strings.Trim(params.Metadata[key], "/"); v != "" {
			parts = append(parts, v)
		}
	}
	parts = append(parts, path.Base(params.Name))
	return strings.TrimPrefix(path.Join(parts...), "/")
}
