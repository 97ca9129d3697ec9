package cheribuild

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArtifactStore wraps an S3-compatible bucket holding built artifacts (disk
// images, sysroot archives) so other machines can fetch them instead of
// rebuilding the whole stack.
type ArtifactStore struct {
	Client     *s3.Client
	BucketName string
}

// NewArtifactStore initializes the client from configuration values. All
// four keys must be present; upload is an opt-in feature.
func NewArtifactStore(ctx context.Context, cfg *Config) (*ArtifactStore, error) {
	endpoint := cfg.Values["CHERIBUILD_MIRROR_ENDPOINT"]
	accessKey := cfg.Values["CHERIBUILD_MIRROR_ACCESS_KEY"]
	secretKey := cfg.Values["CHERIBUILD_MIRROR_SECRET_KEY"]
	bucketName := cfg.Values["CHERIBUILD_MIRROR_BUCKET"]

	if endpoint == "" || accessKey == "" || secretKey == "" || bucketName == "" {
		return nil, fmt.Errorf("artifact mirror credentials missing in configuration " +
			"(CHERIBUILD_MIRROR_ENDPOINT, CHERIBUILD_MIRROR_ACCESS_KEY, CHERIBUILD_MIRROR_SECRET_KEY, CHERIBUILD_MIRROR_BUCKET)")
	}

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithRegion("auto"),
	}
	if Debug {
		options = append(options, awsconfig.WithClientLogMode(aws.LogSigning|aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &ArtifactStore{Client: client, BucketName: bucketName}, nil
}

// UploadFile streams one local file into the bucket under its base name.
func (st *ArtifactStore) UploadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	key := baseName(path)
	statusUpdate("Uploading", key, "to mirror bucket", st.BucketName)
	_, err = st.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(st.BucketName),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", key, err)
	}
	return nil
}

// uploadArtifacts pushes the given files to the configured mirror.
func uploadArtifacts(ctx context.Context, cfg *Config, paths ...string) error {
	store, err := NewArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := store.UploadFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}
