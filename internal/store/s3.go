package store

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"path"
	"slices"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/sisilabsai/thesignal/internal/config"
	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/record"
)

// ObjectAPI is the subset of *s3.Client used by S3Store.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the collection as one JSON object. Replacement uses
// conditional writes on the object's ETag.
type S3Store struct {
	client     ObjectAPI
	bucket     string
	key        string
	domainsKey string
}

// s3Domains is the stored layout of the trusted domain list.
type s3Domains struct {
	Domains []string `json:"domains"`
}

// s3Document is the stored object layout.
type s3Document struct {
	Version int64           `json:"version"`
	Records []record.Record `json:"records"`
}

var newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
	return s3.NewFromConfig(cfg, optFns...)
}

// NewS3Client builds an S3 client from the s3_* settings. Static
// credentials are used when both keys are set, otherwise the default chain.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Store stores the collection at bucket/key and the trusted domain
// list in trusted.json next to it.
func NewS3Store(client ObjectAPI, bucket, key string) *S3Store {
	return &S3Store{
		client:     client,
		bucket:     bucket,
		key:        key,
		domainsKey: path.Join(path.Dir(key), "trusted.json"),
	}
}

// GetAll downloads the collection. A missing object is an empty collection.
func (s *S3Store) GetAll(ctx context.Context) (*Snapshot, error) {
	data, etag, err := s.getObject(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &Snapshot{Records: make([]record.Record, 0)}, nil
	}

	var doc s3Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewPersistence(err)
	}
	if doc.Records == nil {
		doc.Records = make([]record.Record, 0)
	}

	return &Snapshot{
		Records: doc.Records,
		Version: doc.Version,
		etag:    etag,
	}, nil
}

// ReplaceAll uploads the collection if the object is unchanged since snap
// was read. A snapshot of a missing object may only create it.
func (s *S3Store) ReplaceAll(ctx context.Context, snap *Snapshot) error {
	records := snap.Records
	if records == nil {
		records = make([]record.Record, 0)
	}
	data, err := json.Marshal(s3Document{Version: snap.Version + 1, Records: records})
	if err != nil {
		return errors.NewInternal(err)
	}

	etag, err := s.putObject(ctx, s.key, data, snap.etag)
	if err != nil {
		if isPreconditionFailed(err) {
			return errors.NewConflict("record collection was modified concurrently")
		}
		return errors.NewPersistence(err)
	}

	snap.Version++
	snap.etag = etag
	return nil
}

func (s *S3Store) Domains(ctx context.Context) ([]string, error) {
	domains, _, err := s.loadDomains(ctx)
	return domains, err
}

func (s *S3Store) AddDomain(ctx context.Context, domain string) (bool, error) {
	domains, etag, err := s.loadDomains(ctx)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(domains, domain)
	if i < len(domains) && domains[i] == domain {
		return false, nil
	}
	domains = slices.Insert(domains, i, domain)
	return true, s.saveDomains(ctx, domains, etag)
}

func (s *S3Store) RemoveDomain(ctx context.Context, domain string) (bool, error) {
	domains, etag, err := s.loadDomains(ctx)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(domains, domain)
	if i == len(domains) || domains[i] != domain {
		return false, nil
	}
	domains = slices.Delete(domains, i, i+1)
	return true, s.saveDomains(ctx, domains, etag)
}

// loadDomains returns the sorted domain list and the ETag it was read at.
func (s *S3Store) loadDomains(ctx context.Context) ([]string, string, error) {
	data, etag, err := s.getObject(ctx, s.domainsKey)
	if err != nil {
		return nil, "", err
	}
	var doc s3Domains
	if data != nil {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, "", errors.NewPersistence(err)
		}
	}
	if doc.Domains == nil {
		doc.Domains = make([]string, 0)
	}
	sort.Strings(doc.Domains)
	return doc.Domains, etag, nil
}

func (s *S3Store) saveDomains(ctx context.Context, domains []string, etag string) error {
	data, err := json.Marshal(s3Domains{Domains: domains})
	if err != nil {
		return errors.NewInternal(err)
	}
	if _, err := s.putObject(ctx, s.domainsKey, data, etag); err != nil {
		if isPreconditionFailed(err) {
			return errors.NewConflict("trusted domain list was modified concurrently")
		}
		return errors.NewPersistence(err)
	}
	return nil
}

// getObject downloads key. A missing object yields nil data and no error.
func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", nil
		}
		return nil, "", errors.NewPersistence(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", errors.NewPersistence(err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, aws.ToString(out.ETag), nil
}

// putObject uploads data to key if its ETag is still etag, or if it does not
// exist yet when etag is empty. The error is returned unclassified.
func (s *S3Store) putObject(ctx context.Context, key string, data []byte, etag string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if etag != "" {
		in.IfMatch = aws.String(etag)
	} else {
		in.IfNoneMatch = aws.String("*")
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.ETag), nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if stderrors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
