package content

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keithlinneman/linnemanlabs-static/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-static/internal/log"
	"github.com/keithlinneman/linnemanlabs-static/internal/xerrors"
)

// ObjectGetter is the part of the S3 client the loader uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures an S3Loader.
type S3Options struct {
	Logger log.Logger

	Bucket string
	Key    string

	// SHA256 is the expected hex digest of the bundle. Empty skips the check.
	SHA256 string

	// Client overrides the S3 client built from the default AWS config
	Client ObjectGetter

	Limits Limits
}

// S3Loader fetches a .tar.gz content bundle from S3.
type S3Loader struct {
	opts   S3Options
	client ObjectGetter
	logger log.Logger
}

func NewS3Loader(ctx context.Context, opts S3Options) (*S3Loader, error) {
	if opts.Bucket == "" {
		return nil, xerrors.New("content s3 bucket is required")
	}
	if opts.Key == "" {
		return nil, xerrors.New("content s3 key is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	opts.SHA256 = strings.ToLower(strings.TrimSpace(opts.SHA256))

	client := opts.Client
	if client == nil {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load AWS config")
		}
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Loader{opts: opts, client: client, logger: opts.Logger}, nil
}

// Load downloads, verifies and unpacks the bundle.
func (l *S3Loader) Load(ctx context.Context) (*Snapshot, error) {
	loadedAt := time.Now().UTC()
	uri := "s3://" + l.opts.Bucket + "/" + l.opts.Key

	l.logger.Info(ctx, "downloading content bundle", "uri", uri)

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.Bucket),
		Key:    aws.String(l.opts.Key),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "get %s", uri)
	}
	defer out.Body.Close()

	data, sum, err := readWithHash(out.Body, l.opts.Limits.MaxBundle)
	if err != nil {
		return nil, xerrors.Wrapf(err, "download %s", uri)
	}

	if l.opts.SHA256 != "" && !cryptoutil.HashEqual(sum, l.opts.SHA256) {
		return nil, xerrors.Newf("content bundle checksum mismatch: expected %s, got %s", l.opts.SHA256, sum)
	}

	mfs, total, err := extractTarGz(data, l.opts.Limits)
	if err != nil {
		return nil, xerrors.Wrapf(err, "extract %s", uri)
	}

	l.logger.Info(ctx, "loaded content bundle",
		"uri", uri,
		"sha256", sum,
		"verified", l.opts.SHA256 != "",
		"files", len(mfs),
		"bytes", total,
	)

	return &Snapshot{
		FS: mfs,
		Meta: Meta{
			Source:  SourceS3,
			Version: l.opts.Key,
			SHA256:  sum,
			Files:   len(mfs),
			Bytes:   total,
		},
		LoadedAt: loadedAt,
	}, nil
}
