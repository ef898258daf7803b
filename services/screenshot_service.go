package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ScreenshotService captures failure screenshots through the Browser
// capability and optionally uploads them to S3.
type ScreenshotService struct {
	Browser   Browser
	S3Service *S3Service
	// Dir is the local directory screenshots land in. Defaults to
	// "screenshots".
	Dir string
}

// NewScreenshotService wires the service; S3 is optional and its absence is
// only logged.
func NewScreenshotService(b Browser) *ScreenshotService {
	s3Service, err := NewS3Service()
	if err != nil {
		log.Printf("Warning: S3 service not initialized, screenshots stay local: %v", err)
		s3Service = nil
	}
	return &ScreenshotService{
		Browser:   b,
		S3Service: s3Service,
		Dir:       "screenshots",
	}
}

// CaptureFailure takes a full-page screenshot for a failed record and returns
// the local path plus a presigned download URL when upload is configured.
func (s *ScreenshotService) CaptureFailure(site string, recordIndex int) (string, string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create screenshot dir: %v", err)
	}

	filename := fmt.Sprintf("%s_record%d_%d.png", site, recordIndex+1, time.Now().Unix())
	path := filepath.Join(s.Dir, filename)

	if err := s.Browser.Screenshot(path); err != nil {
		return "", "", fmt.Errorf("failed to take screenshot: %v", err)
	}
	log.Printf("Failure screenshot saved: %s", path)

	if s.S3Service == nil {
		return path, "", nil
	}

	key := "screenshots/" + filename
	if err := s.S3Service.UploadFile(path, key); err != nil {
		log.Printf("Failed to upload screenshot: %v", err)
		return path, "", nil
	}
	url, err := s.S3Service.GeneratePresignedURL(key)
	if err != nil {
		log.Printf("Failed to presign screenshot URL: %v", err)
		return path, "", nil
	}
	return path, url, nil
}
