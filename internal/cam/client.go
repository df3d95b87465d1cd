package cam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client talks to the CAM geometry service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL. A zero
// timeout falls back to the default, which is sized for toolpath
// generation on large sheets.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	err := c.getJSON(ctx, "/health", &status)
	return status, err
}

// UploadStep sends a STEP file and returns the analyzed solids.
func (c *Client) UploadStep(ctx context.Context, filename string, content io.Reader) (BrepImportResult, error) {
	var result BrepImportResult

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return result, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return result, fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return result, fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload-step", body)
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return result, nil
}

// AlignParts rotates the parts of the listed files flat and returns a
// combined re-analyzed file. fileIDs should be pre-sorted so equal
// sets map to equal requests.
func (c *Client) AlignParts(ctx context.Context, fileIDs []string) (BrepImportResult, error) {
	var result BrepImportResult
	err := c.postJSON(ctx, "/api/align-parts", AlignPartsRequest{FileIDs: fileIDs}, &result)
	return result, err
}

// ExtractContours slices one object into 2D loops.
func (c *Client) ExtractContours(ctx context.Context, req ContourExtractRequest) (ContourExtractResult, error) {
	var result ContourExtractResult
	err := c.postJSON(ctx, "/api/extract-contours", req, &result)
	return result, err
}

// DetectOperations proposes machining operations for a file.
func (c *Client) DetectOperations(ctx context.Context, req DetectOperationsRequest) (OperationDetectResult, error) {
	var result OperationDetectResult
	err := c.postJSON(ctx, "/api/detect-operations", req, &result)
	return result, err
}

// ValidateSettings runs server-side sanity checks on settings.
func (c *Client) ValidateSettings(ctx context.Context, settings MachiningSettings) (ValidateSettingsResponse, error) {
	var result ValidateSettingsResponse
	err := c.postJSON(ctx, "/api/validate-settings", ValidateSettingsRequest{Settings: settings}, &result)
	return result, err
}

// GenerateToolpath plans passes for the given assignments.
func (c *Client) GenerateToolpath(ctx context.Context, req ToolpathGenRequest) (ToolpathGenResult, error) {
	var result ToolpathGenResult
	err := c.postJSON(ctx, "/api/generate-toolpath", req, &result)
	return result, err
}

// GenerateCode runs the post processor over planned toolpaths.
func (c *Client) GenerateCode(ctx context.Context, req CodeGenRequest) (OutputResult, error) {
	var result OutputResult
	err := c.postJSON(ctx, "/api/generate-sbp", req, &result)
	return result, err
}

// AutoNest distributes parts across the available sheets.
func (c *Client) AutoNest(ctx context.Context, req AutoNestRequest) (AutoNestResult, error) {
	var result AutoNestResult
	err := c.postJSON(ctx, "/api/auto-nesting", req, &result)
	return result, err
}

// ValidatePlacement checks part placements for bound violations and
// collisions.
func (c *Client) ValidatePlacement(ctx context.Context, req ValidatePlacementRequest) (ValidatePlacementResponse, error) {
	var result ValidatePlacementResponse
	err := c.postJSON(ctx, "/api/validate-placement", req, &result)
	return result, err
}

// Presets returns the per-material machining presets.
func (c *Client) Presets(ctx context.Context) ([]PresetItem, error) {
	var presets []PresetItem
	err := c.getJSON(ctx, "/api/presets", &presets)
	return presets, err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}
