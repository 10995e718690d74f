package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
}

func (f *fakeUploader) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(params.Body)
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func newTestR2() *R2Service {
	c := testConfig()
	c.R2.BucketName = "media"
	c.R2.PublicURL = "https://cdn.example.com/"
	return NewR2Service(c, &fakeUploader{})
}

func TestR2Upload(t *testing.T) {
	svc := newTestR2()
	uploader := svc.uploader.(*fakeUploader)

	url, err := svc.Upload(context.Background(), 7, fileHeader(t, "photo.png", pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/7/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	require.Len(t, uploader.inputs, 1)
	assert.Equal(t, "media", *uploader.inputs[0].Bucket)
	assert.Equal(t, "image/png", *uploader.inputs[0].ContentType)
	assert.Equal(t, pngHeader, uploader.bodies[0])
}

func TestR2Upload_RejectsUnknownType(t *testing.T) {
	svc := newTestR2()

	_, err := svc.Upload(context.Background(), 7, fileHeader(t, "notes.txt", []byte("plain text")))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
	assert.Empty(t, svc.uploader.(*fakeUploader).inputs)
}

func TestR2Upload_NotConfigured(t *testing.T) {
	svc := NewR2Service(testConfig(), nil)

	_, err := svc.Upload(context.Background(), 7, fileHeader(t, "photo.png", pngHeader))
	assert.ErrorIs(t, err, ErrConfiguration)
}
