package content

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keithlinneman/linnemanlabs-static/internal/cryptoutil"
)

type fakeS3 struct {
	objects map[string][]byte
	err     error
	calls   int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func newFakeS3(t *testing.T) (*fakeS3, []byte) {
	t.Helper()
	bundle := makeBundle(t,
		tarEntry{name: "index.html", body: "<h1>bundle</h1>"},
		tarEntry{name: "img/logo.svg", body: "<svg/>"},
	)
	return &fakeS3{objects: map[string][]byte{"site-bucket/releases/site.tar.gz": bundle}}, bundle
}

func TestNewS3Loader_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewS3Loader(ctx, S3Options{Key: "k", Client: &fakeS3{}}); err == nil {
		t.Fatal("missing bucket should fail")
	}
	if _, err := NewS3Loader(ctx, S3Options{Bucket: "b", Client: &fakeS3{}}); err == nil {
		t.Fatal("missing key should fail")
	}
}

func TestS3Loader_Load(t *testing.T) {
	client, bundle := newFakeS3(t)
	sum := cryptoutil.SHA256Hex(bundle)

	l, err := NewS3Loader(context.Background(), S3Options{
		Bucket: "site-bucket",
		Key:    "releases/site.tar.gz",
		SHA256: " " + strings.ToUpper(sum) + "\n",
		Client: client,
	})
	if err != nil {
		t.Fatalf("NewS3Loader: %v", err)
	}

	snap, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	b, err := fs.ReadFile(snap.FS, "index.html")
	if err != nil || string(b) != "<h1>bundle</h1>" {
		t.Fatalf("index.html = %q, %v", b, err)
	}
	if snap.Meta.Source != SourceS3 || snap.Meta.SHA256 != sum || snap.Meta.Version != "releases/site.tar.gz" {
		t.Fatalf("meta = %+v", snap.Meta)
	}
	if snap.Meta.Files != 2 {
		t.Fatalf("files = %d", snap.Meta.Files)
	}
	if snap.LoadedAt.IsZero() {
		t.Fatal("LoadedAt not set")
	}
}

func TestS3Loader_ChecksumMismatch(t *testing.T) {
	client, _ := newFakeS3(t)
	l, err := NewS3Loader(context.Background(), S3Options{
		Bucket: "site-bucket",
		Key:    "releases/site.tar.gz",
		SHA256: strings.Repeat("0", 64),
		Client: client,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = l.Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("err = %v", err)
	}
}

func TestS3Loader_NoChecksum(t *testing.T) {
	client, _ := newFakeS3(t)
	l, _ := NewS3Loader(context.Background(), S3Options{Bucket: "site-bucket", Key: "releases/site.tar.gz", Client: client})
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load without checksum: %v", err)
	}
}

func TestS3Loader_GetError(t *testing.T) {
	boom := errors.New("access denied")
	l, _ := NewS3Loader(context.Background(), S3Options{Bucket: "b", Key: "k", Client: &fakeS3{err: boom}})

	_, err := l.Load(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapping %v", err, boom)
	}
	if !strings.Contains(err.Error(), "s3://b/k") {
		t.Fatalf("err %q should name the object", err)
	}
}

func TestS3Loader_BundleTooLarge(t *testing.T) {
	client, _ := newFakeS3(t)
	l, _ := NewS3Loader(context.Background(), S3Options{
		Bucket: "site-bucket",
		Key:    "releases/site.tar.gz",
		Client: client,
		Limits: Limits{MaxBundle: 16, MaxFile: 1 << 20, MaxTotal: 1 << 20},
	})
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected size error")
	}
}
