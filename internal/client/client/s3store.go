package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/common"
)

// S3MaxBatchSize bounds BatchSet. S3 has no multi-object transaction, so a
// batch is a sequence of puts that stops at the first failure.
const S3MaxBatchSize = 100

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Store keeps one JSON object per document path.
type S3Store struct {
	api    S3API
	bucket string
}

// seams for tests
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) S3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", common.ErrValidation)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return NewS3StoreWithAPI(newS3ClientFromConfig(awsCfg, s3Opts...), cfg.Bucket), nil
}

func NewS3StoreWithAPI(api S3API, bucket string) *S3Store {
	return &S3Store{api: api, bucket: bucket}
}

func (s *S3Store) MaxBatchSize() int { return S3MaxBatchSize }

func (s *S3Store) Get(ctx context.Context, path string) (*models.Record, error) {
	owner, _, err := paths.ParseAny(path)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, mapS3Error("get "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrNetwork, path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrValidation, path, err)
	}
	rec, err := models.FromStorage(owner, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrValidation, path, err)
	}
	return rec, nil
}

func (s *S3Store) Set(ctx context.Context, path string, rec *models.Record) error {
	body, err := json.Marshal(models.ToStorage(rec))
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", common.ErrValidation, path, err)
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return mapS3Error("put "+path, err)
	}
	return nil
}

// Delete succeeds for absent objects; S3 does not report them.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return mapS3Error("delete "+path, err)
	}
	return nil
}

func (s *S3Store) ListPaths(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error("list "+prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// GetRange reads every document of the owner and filters by logical date.
func (s *S3Store) GetRange(ctx context.Context, ownerID string, start, end int64) ([]*models.Record, error) {
	prefix, err := paths.OwnerPrefix(ownerID)
	if err != nil {
		return nil, err
	}
	keys, err := s.ListPaths(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var out []*models.Record
	for _, key := range keys {
		rec, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if rec == nil || rec.LogicalDate < start || rec.LogicalDate > end {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalDate > out[j].LogicalDate })
	return out, nil
}

func (s *S3Store) BatchSet(ctx context.Context, items []PathRecord) error {
	if len(items) > S3MaxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds limit %d", common.ErrValidation, len(items), S3MaxBatchSize)
	}
	for _, it := range items {
		if err := s.Set(ctx, it.Path, it.Record); err != nil {
			return err
		}
	}
	return nil
}

// s3CredentialCodes are the error codes S3 sends, mostly with a 403, when
// the credentials themselves are bad or stale rather than lacking access.
var s3CredentialCodes = map[string]bool{
	"ExpiredToken":          true,
	"InvalidAccessKeyId":    true,
	"InvalidToken":          true,
	"SignatureDoesNotMatch": true,
	"TokenRefreshRequired":  true,
}

func mapS3Error(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: s3 %s: %v", common.ErrNetwork, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("s3 %s: %w", op, err)
	}
	var ae smithy.APIError
	if errors.As(err, &ae) && s3CredentialCodes[ae.ErrorCode()] {
		return fmt.Errorf("%w: s3 %s: %v", common.ErrAuthentication, op, err)
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		switch code := re.HTTPStatusCode(); {
		case code == http.StatusUnauthorized:
			return fmt.Errorf("%w: s3 %s: %v", common.ErrAuthentication, op, err)
		case code == http.StatusForbidden:
			return fmt.Errorf("%w: s3 %s: %v", common.ErrPermission, op, err)
		case code == http.StatusNotFound:
			return fmt.Errorf("%w: s3 %s: %v", common.ErrNotFound, op, err)
		case code >= 500:
			return fmt.Errorf("%w: s3 %s: %v", common.ErrNetwork, op, err)
		}
		return fmt.Errorf("s3 %s: %w", op, err)
	}
	// no HTTP response at all: DNS, refused connection, reset
	return fmt.Errorf("%w: s3 %s: %v", common.ErrNetwork, op, err)
}
