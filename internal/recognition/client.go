// Package recognition submits image bursts to the face recognition service.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/attendance/internal/attendance"
)

const (
	defaultRecognitionURL = "http://localhost:5000"
	recognizeEndpoint     = "/api/presences/recognize"
)

// Client calls the recognition service. It keeps no state between calls.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a recognition client. A zero timeout means no client-side timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultRecognitionURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// recognizeResponse is the service's verdict for one burst.
type recognizeResponse struct {
	Success     bool              `json:"success"`
	Recognized  bool              `json:"recognized"`
	StudentID   *attendance.RawID `json:"student_id"`
	StudentName string            `json:"student_name"`
	Detections  int               `json:"detections"`
	TotalFrames int               `json:"total_frames"`
	Message     string            `json:"message"`
	Error       string            `json:"error"`
}

// SubmitBurst implements attendance.Recognizer. A response with success=true
// and recognized=false is a normal outcome, not an error.
func (c *Client) SubmitBurst(ctx context.Context, frames []attendance.Frame) (attendance.RecognitionResult, error) {
	if len(frames) == 0 {
		return attendance.RecognitionResult{}, attendance.ErrNoFrames
	}

	body, contentType, err := encodeFrames(frames)
	if err != nil {
		return attendance.RecognitionResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+recognizeEndpoint, body)
	if err != nil {
		return attendance.RecognitionResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return attendance.RecognitionResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return attendance.RecognitionResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	var rr recognizeResponse
	if err := json.Unmarshal(data, &rr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return attendance.RecognitionResult{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
		}
		return attendance.RecognitionResult{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !rr.Success {
		return attendance.RecognitionResult{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, rr.errorText())
	}

	result := attendance.RecognitionResult{
		Recognized:  rr.Recognized,
		Detections:  rr.Detections,
		TotalFrames: rr.TotalFrames,
	}
	if result.TotalFrames == 0 {
		result.TotalFrames = len(frames)
	}
	if rr.Recognized && rr.StudentID != nil && !rr.StudentID.IsZero() {
		result.RawID = rr.StudentID
		result.DisplayName = rr.StudentName
	} else {
		result.Recognized = false
	}
	return result, nil
}

func (r *recognizeResponse) errorText() string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	default:
		return "recognition failed"
	}
}

// encodeFrames builds the multipart body: one "frames" part per frame, in order.
func encodeFrames(frames []attendance.Frame) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for i, frame := range frames {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="frames"; filename="frame_%d.jpg"`, i))
		h.Set("Content-Type", detectMIMEType(frame))
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(frame); err != nil {
			return nil, "", fmt.Errorf("failed to write frame %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}
