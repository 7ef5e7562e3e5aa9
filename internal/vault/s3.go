package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mediasort/internal/config"
	"mediasort/internal/media"
)

// S3API is the subset of the S3 client used by S3Vault.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores snapshots as objects in an S3 bucket:
//
//	<prefix>/snapshots/<name>
//	<prefix>/snapshots/<name>.version
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   S3API
	uploader manager.UploadAPIClient
}

// NewS3Vault creates a vault on bucket using client.
func NewS3Vault(name, bucket, prefix string, client S3API) *S3Vault {
	return &S3Vault{
		name:   name,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: client,
	}
}

// NewS3VaultFromConfig loads AWS configuration the SDK way (environment,
// shared config, instance roles) and applies the vault's overrides.
func NewS3VaultFromConfig(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	v := NewS3Vault(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client)
	v.uploader = client
	return v, nil
}

func (v *S3Vault) key(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if v.prefix == "" {
		return path.Join("snapshots", name), nil
	}
	return path.Join(v.prefix, "snapshots", name), nil
}

// PutSnapshot uploads the snapshot through the multipart upload manager,
// then its version object.
func (v *S3Vault) PutSnapshot(name string, r io.Reader, size int64, version int64) error {
	key, err := v.key(name)
	if err != nil {
		return err
	}
	ctx := context.Background()

	counted := &countingReader{r: r}
	if v.uploader != nil {
		uploader := manager.NewUploader(v.uploader)
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(key),
			Body:   counted,
		})
	} else {
		var data []byte
		if data, err = io.ReadAll(counted); err == nil {
			_, err = v.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:        aws.String(v.bucket),
				Key:           aws.String(key),
				Body:          bytes.NewReader(data),
				ContentLength: aws.Int64(int64(len(data))),
			})
		}
	}
	if err != nil {
		return fmt.Errorf("uploading snapshot %s: %w", name, err)
	}
	if counted.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counted.n)
	}

	versionData := []byte(strconv.FormatInt(version, 10))
	_, err = v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(key + versionSuffix),
		Body:          bytes.NewReader(versionData),
		ContentLength: aws.Int64(int64(len(versionData))),
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot version %s: %w", name, err)
	}
	return nil
}

func (v *S3Vault) GetSnapshot(name string, w io.Writer) error {
	key, err := v.key(name)
	if err != nil {
		return err
	}
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return fmt.Errorf("downloading snapshot %s: %w", name, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading snapshot %s: %w", name, err)
	}
	return nil
}

// GetSnapshotVersion returns 0 if no version object exists.
func (v *S3Vault) GetSnapshotVersion(name string) (int64, error) {
	key, err := v.key(name)
	if err != nil {
		return 0, err
	}
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key + versionSuffix),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading snapshot version %s: %w", name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("reading snapshot version %s: %w", name, err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup() error {
	if v.bucket == "" {
		return fmt.Errorf("s3 vault %q has no bucket", v.name)
	}
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", v.bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ media.Vault = (*S3Vault)(nil)
