package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"entity-links/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Settings holds the connection data of an S3 compatible endpoint.
type S3Settings struct {
	URL    string
	Region string
	Key    string
	Secret string
}

// NewS3Client creates a client for an S3 compatible endpoint.
func NewS3Client(ctx context.Context, settings S3Settings) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(settings.Region),
	}
	if settings.Key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.Key, settings.Secret, "")))
	}
	if settings.URL != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               settings.URL,
					SigningRegion:     settings.Region,
					HostnameImmutable: true,
				}, nil
			},
		)
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// ObjectAPI is the part of the S3 client the report inbox uses.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ReportInbox is a bucket prefix holding JSON arrays of link update reports.
type ReportInbox struct {
	client ObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

func NewReportInbox(client ObjectAPI, bucket, prefix string) *ReportInbox {
	return &ReportInbox{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Pending lists the keys of report objects, oldest first.
func (i *ReportInbox) Pending(ctx context.Context) ([]string, error) {
	type object struct {
		key      string
		modified time.Time
	}
	var objects []object
	paginator := s3.NewListObjectsV2Paginator(i.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(i.bucket),
		Prefix: aws.String(i.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list report objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			objects = append(objects, object{key: key, modified: aws.ToTime(obj.LastModified)})
		}
	}

	sort.SliceStable(objects, func(a, b int) bool {
		if objects[a].modified.Equal(objects[b].modified) {
			return objects[a].key < objects[b].key
		}
		return objects[a].modified.Before(objects[b].modified)
	})
	keys := make([]string, len(objects))
	for n, obj := range objects {
		keys[n] = obj.key
	}
	return keys, nil
}

// Read decodes and validates the reports stored under key.
func (i *ReportInbox) Read(ctx context.Context, key string) ([]models.LinkUpdateReport, error) {
	out, err := i.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get report object %s: %w", key, err)
	}
	defer out.Body.Close()

	var reports []models.LinkUpdateReport
	if err := json.NewDecoder(out.Body).Decode(&reports); err != nil {
		return nil, fmt.Errorf("decode report object %s: %w", key, err)
	}
	if err := models.ValidateReports(reports); err != nil {
		return nil, fmt.Errorf("report object %s: %w", key, err)
	}
	return reports, nil
}

// Ack removes a processed report object.
func (i *ReportInbox) Ack(ctx context.Context, key string) error {
	_, err := i.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete report object %s: %w", key, err)
	}
	return nil
}

// Publish stores a batch of reports as a new object and returns its key.
func (i *ReportInbox) Publish(ctx context.Context, reports []models.LinkUpdateReport) (string, error) {
	data, err := json.Marshal(reports)
	if err != nil {
		return "", fmt.Errorf("encode reports: %w", err)
	}
	key := fmt.Sprintf("%s%s-%s.json", i.prefix, i.now().UTC().Format("2006-01-02T15-04-05Z"), uuid.NewString())
	_, err = i.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(i.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put report object %s: %w", key, err)
	}
	return key, nil
}
