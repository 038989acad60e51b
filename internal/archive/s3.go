package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"flowvc/internal/vc"
)

// S3Archive stores bundles as objects under <prefix>/bundles/<commitID>.json.
// Credentials come from the default AWS credential chain.
type S3Archive struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ vc.Archive = (*S3Archive)(nil)

// NewS3Archive creates a new S3-backed archive for the given bucket.
func NewS3Archive(bucket, prefix, region string) (*S3Archive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Archive{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

func (a *S3Archive) key(commitID string) string {
	return path.Join(a.prefix, "bundles", commitID+".json")
}

// PutBundle uploads a bundle. S3 PUTs are last-writer-wins and bundles
// are immutable, so re-uploading the same commit is harmless.
func (a *S3Archive) PutBundle(commitID string, r io.Reader, size int64) error {
	_, err := a.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(commitID)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading bundle %s: %w", commitID, err)
	}
	return nil
}

func (a *S3Archive) GetBundle(commitID string, w io.Writer) error {
	out, err := a.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(commitID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("bundle not found: %s", commitID)
		}
		return fmt.Errorf("downloading bundle %s: %w", commitID, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading bundle %s: %w", commitID, err)
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (a *S3Archive) ValidateSetup() error {
	_, err := a.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", a.bucket, err)
	}
	return nil
}
