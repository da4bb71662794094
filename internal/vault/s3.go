package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"taxarchive/internal/archive"
	"taxarchive/internal/config"
)

// Environment variables consulted for static S3 credentials. When unset the
// default AWS credential chain applies.
const (
	EnvS3AccessKeyID     = "TAXARCHIVE_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "TAXARCHIVE_S3_SECRET_ACCESS_KEY"
)

// metadataVersionKey is the user metadata key holding a snapshot's version.
const metadataVersionKey = "taxarchive-version"

// S3Client is the subset of the S3 API used by S3Vault.
type S3Client interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores stashes and snapshots in an S3 bucket:
//
//	<prefix>/content/<checksum>
//	<prefix>/metadata/<archiveID>/<name>   (version kept in object metadata)
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   S3Client
	uploader *manager.Uploader
}

// NewS3Vault wraps an existing client.
func NewS3Vault(name, bucket, prefix string, client S3Client) *S3Vault {
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// NewS3VaultFromConfig builds a client from the default AWS configuration,
// honouring the configured region and an optional S3-compatible endpoint.
func NewS3VaultFromConfig(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if id, secret := os.Getenv(EnvS3AccessKeyID), os.Getenv(EnvS3SecretAccessKey); id != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Vault(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, client), nil
}

// Name returns the configured vault name.
func (v *S3Vault) Name() string {
	return v.name
}

func (v *S3Vault) key(parts ...string) string {
	if v.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{v.prefix}, parts...)...)
}

func (v *S3Vault) contentKey(checksum string) (string, error) {
	if err := checkKey(checksum); err != nil {
		return "", err
	}
	return v.key("content", checksum), nil
}

func (v *S3Vault) metadataKey(archiveID, name string) (string, error) {
	if err := checkKey(archiveID); err != nil {
		return "", err
	}
	if err := checkKey(name); err != nil {
		return "", err
	}
	return v.key("metadata", archiveID, name), nil
}

func (v *S3Vault) PutContent(checksum string, r io.Reader, size int64) error {
	ctx := context.Background()
	key, err := v.contentKey(checksum)
	if err != nil {
		return err
	}

	_, exists, err := v.head(ctx, key)
	if err != nil {
		return fmt.Errorf("checking content %s: %w", checksum, err)
	}
	if exists {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	if err := v.upload(ctx, key, r, size, nil); err != nil {
		return fmt.Errorf("uploading content %s: %w", checksum, err)
	}
	return nil
}

func (v *S3Vault) GetContent(checksum string, w io.Writer) error {
	key, err := v.contentKey(checksum)
	if err != nil {
		return err
	}
	if err := v.download(context.Background(), key, w); err != nil {
		return fmt.Errorf("content %s: %w", checksum, err)
	}
	return nil
}

func (v *S3Vault) PutMetadata(archiveID string, name string, r io.Reader, size int64, version int64) error {
	key, err := v.metadataKey(archiveID, name)
	if err != nil {
		return err
	}
	meta := map[string]string{metadataVersionKey: strconv.FormatInt(version, 10)}
	if err := v.upload(context.Background(), key, r, size, meta); err != nil {
		return fmt.Errorf("uploading metadata %s: %w", name, err)
	}
	return nil
}

func (v *S3Vault) GetMetadata(archiveID string, name string, w io.Writer) error {
	key, err := v.metadataKey(archiveID, name)
	if err != nil {
		return err
	}
	if err := v.download(context.Background(), key, w); err != nil {
		return fmt.Errorf("metadata %s for %s: %w", name, archiveID, err)
	}
	return nil
}

// GetMetadataVersion returns 0 when the object does not exist.
func (v *S3Vault) GetMetadataVersion(archiveID string, name string) (int64, error) {
	key, err := v.metadataKey(archiveID, name)
	if err != nil {
		return 0, err
	}
	out, exists, err := v.head(context.Background(), key)
	if err != nil {
		return 0, fmt.Errorf("reading metadata version: %w", err)
	}
	if !exists {
		return 0, nil
	}
	raw, ok := out.Metadata[metadataVersionKey]
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup() error {
	if _, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("accessing bucket %s: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) head(ctx context.Context, key string) (*s3.HeadObjectOutput, bool, error) {
	out, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return out, true, nil
}

func (v *S3Vault) upload(ctx context.Context, key string, r io.Reader, size int64, meta map[string]string) error {
	counter := &countingReader{r: r}
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(v.bucket),
		Key:      aws.String(key),
		Body:     counter,
		Metadata: meta,
	})
	if err != nil {
		return err
	}
	if counter.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

func (v *S3Vault) download(ctx context.Context, key string, w io.Writer) error {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return ErrNotFound
		}
		return err
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading object: %w", err)
	}
	return nil
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

var _ archive.Vault = (*S3Vault)(nil)
