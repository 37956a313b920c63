package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudvault/cloudvault-cli/internal/models"
	"github.com/cloudvault/cloudvault-cli/internal/util/filter"
)

type fakeSource struct {
	records    []models.FileRecord
	content    map[string][]byte
	failing    map[string]error
	refreshErr error
}

func (f *fakeSource) Refresh(ctx context.Context) error { return f.refreshErr }
func (f *fakeSource) Files() []models.FileRecord        { return f.records }
func (f *fakeSource) Download(ctx context.Context, name string) ([]byte, error) {
	if err := f.failing[name]; err != nil {
		return nil, err
	}
	return f.content[name], nil
}

type memorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memorySink) String() string { return "memory" }
func (m *memorySink) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in   string
		want Destination
	}{
		{"./backup", Destination{Scheme: "dir", Prefix: "./backup"}},
		{"file:///tmp/out", Destination{Scheme: "dir", Prefix: "/tmp/out"}},
		{"s3://bucket", Destination{Scheme: "s3", Bucket: "bucket"}},
		{"s3://bucket/vault/copy/", Destination{Scheme: "s3", Bucket: "bucket", Prefix: "vault/copy"}},
		{"azblob://container/pre", Destination{Scheme: "azblob", Bucket: "container", Prefix: "pre"}},
	}
	for _, tt := range tests {
		got, err := ParseDestination(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDestination("gs://bucket")
	assert.ErrorIs(t, err, ErrUnknownScheme)
	_, err = ParseDestination("s3:///prefix")
	assert.ErrorIs(t, err, ErrMissingBucket)
	_, err = ParseDestination("  ")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestObjectKey(t *testing.T) {
	key, err := objectKey("pre", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "pre/docs/a.txt", key)

	key, err = objectKey("", `win\path.txt`)
	require.NoError(t, err)
	assert.Equal(t, "win/path.txt", key)

	_, err = objectKey("pre", "../escape.txt")
	assert.ErrorIs(t, err, ErrUnsafeKey)
	_, err = objectKey("pre", "/")
	assert.ErrorIs(t, err, ErrUnsafeKey)
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("CLOUDVAULT_S3_PATH_STYLE", "true")
	t.Setenv("AZURE_STORAGE_ACCOUNT_URL", "https://acct.blob.core.windows.net")

	opts, err := OptionsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", opts.S3Region)
	assert.True(t, opts.S3UsePathStyle)
	assert.Equal(t, "https://acct.blob.core.windows.net", opts.AzureAccountURL)
}

func TestDirSink(t *testing.T) {
	root := filepath.Join(t.TempDir(), "mirror")
	sink, err := NewDirSink(root)
	require.NoError(t, err)

	require.NoError(t, sink.Put(context.Background(), "docs/a.txt", []byte("alpha")))
	require.NoError(t, sink.Put(context.Background(), "docs/a.txt", []byte("beta")))

	data, err := os.ReadFile(filepath.Join(root, "docs", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))

	assert.ErrorIs(t, sink.Put(context.Background(), "../x", nil), ErrUnsafeKey)

	entries, err := os.ReadDir(filepath.Join(root, "docs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.inputs = append(f.inputs, in)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Sink_Put(t *testing.T) {
	api := &fakeS3{}
	sink := &S3Sink{client: api, bucket: "b", prefix: "vault"}

	require.NoError(t, sink.Put(context.Background(), "a.txt", []byte("123")))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "b", aws.ToString(api.inputs[0].Bucket))
	assert.Equal(t, "vault/a.txt", aws.ToString(api.inputs[0].Key))
	assert.EqualValues(t, 3, aws.ToInt64(api.inputs[0].ContentLength))
	assert.Equal(t, "s3://b/vault", sink.String())

	api.err = errors.New("AccessDenied")
	err := sink.Put(context.Background(), "a.txt", nil)
	assert.ErrorContains(t, err, "AccessDenied")
}

type fakeBlob struct {
	container, name string
	data            []byte
}

func (f *fakeBlob) UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error) {
	f.container, f.name, f.data = containerName, blobName, buffer
	return azblob.UploadBufferResponse{}, nil
}

func TestAzureSink_Put(t *testing.T) {
	api := &fakeBlob{}
	sink := &AzureSink{client: api, container: "c", prefix: "p"}

	require.NoError(t, sink.Put(context.Background(), "docs/x.bin", []byte{1, 2}))
	assert.Equal(t, "c", api.container)
	assert.Equal(t, "p/docs/x.bin", api.name)
	assert.Equal(t, []byte{1, 2}, api.data)
}

func TestNewAzureSink_RequiresCredentials(t *testing.T) {
	_, err := NewAzureSink("c", "", Options{}, nil)
	assert.ErrorIs(t, err, ErrAzureNoAccount)

	_, err = NewAzureSink("c", "", Options{AzureAccountURL: "https://acct.blob.core.windows.net"}, nil)
	assert.Error(t, err)

	sink, err := NewAzureSink("c", "p", Options{
		AzureAccountURL: "https://acct.blob.core.windows.net",
		AzureSASToken:   "?sv=2024-01-01&sig=abc",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "azblob://c/p", sink.String())
}

func TestMirrorRun(t *testing.T) {
	src := &fakeSource{
		records: []models.FileRecord{
			{Name: "docs/.folder", Kind: models.KindFolder},
			{Name: "docs/a.txt"},
			{Name: "b.txt"},
			{Name: "broken.bin"},
		},
		content: map[string][]byte{"docs/a.txt": []byte("aa"), "b.txt": []byte("bbb")},
		failing: map[string]error{"broken.bin": errors.New("Download failed")},
	}
	sink := &memorySink{}

	var seen []string
	m := New(src, sink, nil)
	m.OnFile = func(name string, size int64, err error) { seen = append(seen, name) }

	summary, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Copied)
	assert.Equal(t, 1, summary.Skipped)
	assert.EqualValues(t, 5, summary.Bytes)
	assert.Equal(t, 1, summary.FailedCount())
	assert.EqualError(t, summary.Failed["broken.bin"], "Download failed")
	assert.Equal(t, []byte("aa"), sink.objects["docs/a.txt"])
	assert.Equal(t, []string{"docs/a.txt", "b.txt", "broken.bin"}, seen)
}

func TestMirrorRun_RefreshFailure(t *testing.T) {
	src := &fakeSource{refreshErr: errors.New("Invalid token")}
	_, err := New(src, &memorySink{}, nil).Run(context.Background())
	assert.ErrorContains(t, err, "Invalid token")
}

func TestMirrorRun_Cancelled(t *testing.T) {
	src := &fakeSource{records: []models.FileRecord{{Name: "a"}, {Name: "b"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(src, &memorySink{}, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Copied)
}

func TestMirrorRun_Filter(t *testing.T) {
	src := &fakeSource{
		records: []models.FileRecord{
			{Name: "Reports/q1.pdf"},
			{Name: "Reports/q1.tmp"},
			{Name: "Reports/2024/q2.pdf"},
			{Name: "notes.txt"},
		},
		content: map[string][]byte{
			"Reports/q1.pdf":      []byte("1"),
			"Reports/q1.tmp":      []byte("t"),
			"Reports/2024/q2.pdf": []byte("2"),
			"notes.txt":           []byte("n"),
		},
	}
	sink := &memorySink{}

	m := New(src, sink, nil)
	m.Filter = filter.Config{PathInclude: []string{"Reports/**"}, Exclude: []string{"*.tmp"}}

	summary, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Copied)
	assert.Equal(t, 2, summary.Skipped)
	assert.Contains(t, sink.objects, "Reports/q1.pdf")
	assert.Contains(t, sink.objects, "Reports/2024/q2.pdf")
	assert.NotContains(t, sink.objects, "notes.txt")
}
