package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureFailureWithoutS3StaysLocal(t *testing.T) {
	browser := newFakeBrowser()
	svc := &ScreenshotService{Browser: browser, Dir: t.TempDir()}

	path, url, err := svc.CaptureFailure("visit-portal", 2)
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.True(t, strings.HasPrefix(path, svc.Dir))
	assert.Contains(t, path, "visit-portal_record3_")

	require.Len(t, browser.screenshots, 1)
	assert.Equal(t, path, browser.screenshots[0])
}

func TestNewScreenshotServiceWithoutAWSConfig(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_S3_BUCKET", "")

	svc := NewScreenshotService(newFakeBrowser())
	assert.Nil(t, svc.S3Service)
	assert.Equal(t, "screenshots", svc.Dir)
}
