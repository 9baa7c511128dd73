package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store is a read-only script source backed by an S3 bucket, used to
// apply migrations published by CI without a checkout of the scripts.
type Store struct {
	key        string
	secret     string
	region     string
	bucket     string
	prefix     string
	client     *s3.Client
	httpClient *http.Client
}

// New returns a new S3 script source. With empty credentials the EC2
// instance role is used.
func New(key, secret, region, bucket, prefix string) (*Store, error) {
	s := &Store{
		key:    key,
		secret: secret,
		region: region,
		bucket: bucket,
		prefix: prefix,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	if err := s.start(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) start(ctx context.Context) error {
	var provider aws.CredentialsProvider
	if s.key == "" && s.secret == "" {
		provider = ec2rolecreds.New()
	} else {
		provider = credentials.NewStaticCredentialsProvider(s.key, s.secret, "")
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(provider),
		config.WithRegion(s.region),
		config.WithHTTPClient(s.httpClient),
	)
	if err != nil {
		return fmt.Errorf("s3: couldn't load aws config: %w", err)
	}
	s.client = s3.NewFromConfig(cfg)

	input := &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}
	if _, err := s.client.HeadBucket(ctx, input); err != nil {
		return fmt.Errorf("s3: couldn't head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}
	for {
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("s3: couldn't list bucket %s: %w", s.bucket, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			name := path.Base(key)
			if strings.HasSuffix(key, "/") || name == "" {
				continue
			}
			names = append(names, name)
		}
		if out.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return names, nil
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: couldn't get object %s: %w", key, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: couldn't read object %s: %w", key, err)
	}
	return b, nil
}

func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	return fmt.Errorf("s3: script source is read-only, generate revisions against a local directory")
}
