package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reports "metering-dashboard/internal/reports/domain"
)

func TestFileStorePut(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, WithPublicBaseURL("https://reports.example.com/"))
	require.NoError(t, err)

	link, err := store.Put(context.Background(), "sched-1", reports.Artifact{Data: []byte("a,b\n"), Filename: "Report_2026-03-02.csv"})
	require.NoError(t, err)
	assert.Equal(t, "https://reports.example.com/sched-1/Report_2026-03-02.csv", link)

	data, err := os.ReadFile(filepath.Join(root, "sched-1", "Report_2026-03-02.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "..", reports.Artifact{Filename: "x.csv"})
	require.Error(t, err)
	_, err = store.Put(context.Background(), "s1", reports.Artifact{Filename: "../x.csv"})
	require.Error(t, err)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	return &s3.PutObjectOutput{}, f.err
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed/" + aws.ToString(params.Key)}, nil
}

func TestS3StorePut(t *testing.T) {
	client := &fakeS3{}
	store, err := newS3Store(client, fakePresigner{}, "bucket", WithKeyPrefix("exports"))
	require.NoError(t, err)

	link, err := store.Put(context.Background(), "s1", reports.Artifact{Data: []byte("x"), Filename: "Billing_2026-03-02.pdf", ContentType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "https://signed/exports/s1/Billing_2026-03-02.pdf", link)
	assert.Equal(t, "bucket", aws.ToString(client.input.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(client.input.ContentType))

	client.err = errors.New("denied")
	_, err = store.Put(context.Background(), "s1", reports.Artifact{Filename: "a.pdf"})
	require.Error(t, err)
}
