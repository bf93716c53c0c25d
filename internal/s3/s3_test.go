package s3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Location: "https://bucket.s3.amazonaws.com/" + aws.ToString(input.Key)}, nil
}

func TestGenerateS3Key(t *testing.T) {
	assert.Equal(t, "recipes/42/images/recipe_image_42.jpg", GenerateS3Key(42, "image/jpeg"))
	assert.Equal(t, "recipes/42/images/recipe_image_42.png", GenerateS3Key(42, "image/png"))
}

func TestMirrorRecipeImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Write(png)
	}))
	defer srv.Close()

	up := &fakeUploader{}
	m := NewImageMirrorWithUploader("bucket", up, time.Second)

	loc, err := m.MirrorRecipeImage(context.Background(), 7, srv.URL+"/photo")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/recipes/7/images/recipe_image_7.png", loc)
	assert.Equal(t, "bucket", aws.ToString(up.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(up.input.ContentType))
}

func TestMirrorRecipeImage_RejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>not an image</body></html>"))
	}))
	defer srv.Close()

	up := &fakeUploader{}
	m := NewImageMirrorWithUploader("bucket", up, time.Second)

	_, err := m.MirrorRecipeImage(context.Background(), 7, srv.URL)
	assert.Error(t, err)
	assert.Nil(t, up.input)
}

func TestMirrorRecipeImage_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := NewImageMirrorWithUploader("bucket", &fakeUploader{}, time.Second)
	_, err := m.MirrorRecipeImage(context.Background(), 7, srv.URL)
	assert.ErrorContains(t, err, "status 404")
}
