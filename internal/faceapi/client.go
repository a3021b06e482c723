package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/face-identify/internal/logging"
)

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// Config carries the per-client credentials and limits. It is owned by the
// caller and copied into the client at construction.
type Config struct {
	Key                 string
	BaseURL             string
	Timeout             time.Duration
	MaxCandidates       int
	ConfidenceThreshold float64
	HTTPClient          *http.Client
}

// Client talks to the face service over HTTPS.
type Client struct {
	key                 string
	baseURL             *url.URL
	timeout             time.Duration
	maxCandidates       int
	confidenceThreshold float64
	httpClient          *http.Client
	logger              *zap.Logger
}

var _ Recognizer = (*Client)(nil)

// New validates cfg and returns a ready client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, errors.New("face service subscription key is required")
	}
	parsed, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid face service base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid face service base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		key:                 cfg.Key,
		baseURL:             parsed,
		timeout:             cfg.Timeout,
		maxCandidates:       cfg.MaxCandidates,
		confidenceThreshold: cfg.ConfidenceThreshold,
		httpClient:          httpClient,
		logger:              logger.Named("faceapi"),
	}, nil
}

// Detect finds faces in image and returns their IDs and rectangles.
func (c *Client) Detect(ctx context.Context, image []byte) ([]DetectedFace, error) {
	query := url.Values{}
	query.Set("returnFaceId", "true")
	query.Set("returnFaceLandmarks", "false")
	faces, err := doJSON[[]DetectedFace](ctx, c, "faceapi.detect", http.MethodPost, "detect", query, octetStream(image))
	if err != nil {
		return nil, err
	}
	return *faces, nil
}

// Identify matches up to MaxIdentifyFaces face IDs against the persons of groupID.
func (c *Client) Identify(ctx context.Context, faceIDs []string, groupID string) ([]IdentifyResult, error) {
	if len(faceIDs) == 0 || len(faceIDs) > MaxIdentifyFaces {
		return nil, fmt.Errorf("identify accepts 1 to %d face IDs, got %d", MaxIdentifyFaces, len(faceIDs))
	}
	req := identifyRequest{
		PersonGroupID:              groupID,
		FaceIDs:                    faceIDs,
		MaxNumOfCandidatesReturned: c.maxCandidates,
		ConfidenceThreshold:        c.confidenceThreshold,
	}
	results, err := doJSON[[]IdentifyResult](ctx, c, "faceapi.identify", http.MethodPost, "identify", nil, jsonBody(req))
	if err != nil {
		return nil, err
	}
	return *results, nil
}

// GetPerson fetches a person of groupID.
func (c *Client) GetPerson(ctx context.Context, groupID, personID string) (*Person, error) {
	return doJSON[Person](ctx, c, "faceapi.get_person", http.MethodGet, path("persongroups", groupID, "persons", personID), nil, nil)
}

type requestBody struct {
	contentType string
	data        []byte
	err         error
}

func octetStream(data []byte) *requestBody {
	return &requestBody{contentType: "application/octet-stream", data: data}
}

func jsonBody(v any) *requestBody {
	data, err := json.Marshal(v)
	if err != nil {
		return &requestBody{err: fmt.Errorf("could not marshal request body: %w", err)}
	}
	return &requestBody{contentType: "application/json", data: data}
}

func path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}

// doJSON performs the request and decodes a JSON response into T.
func doJSON[T any](ctx context.Context, c *Client, operation, method, endpoint string, query url.Values, body *requestBody) (*T, error) {
	data, err := c.do(ctx, operation, method, endpoint, query, body)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, logging.NewOperationError(operation, "", fmt.Errorf("could not unmarshal response: %w", err))
	}
	return &result, nil
}

// do sends one request and returns the body of a 2xx response. Non-2xx
// responses become *ServiceError and timeouts ErrTimeout, both wrapped in an
// OperationError.
func (c *Client) do(ctx context.Context, operation, method, endpoint string, query url.Values, body *requestBody) ([]byte, error) {
	if body != nil && body.err != nil {
		return nil, logging.NewOperationError(operation, "", body.err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL.JoinPath(strings.Split(endpoint, "/")...)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, logging.NewOperationError(operation, "", fmt.Errorf("could not create request: %w", err))
	}
	req.Header.Set(subscriptionKeyHeader, c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(operation, started, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(operation, started, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		svcErr := newServiceError(resp.StatusCode, data)
		c.logger.Warn("face service call failed",
			zap.String("operation", operation),
			zap.Int("status", svcErr.StatusCode),
			zap.String("code", svcErr.Code),
			zap.Duration("elapsed", time.Since(started)),
		)
		return nil, logging.NewOperationError(operation, "", svcErr)
	}

	c.logger.Debug("face service call",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)
	return data, nil
}

func (c *Client) transportError(operation string, started time.Time, err error) error {
	if isTimeout(err) {
		c.logger.Warn("face service call timed out", zap.String("operation", operation), zap.Duration("elapsed", time.Since(started)))
		return logging.NewOperationError(operation, "", fmt.Errorf("%w: %v", ErrTimeout, err))
	}
	c.logger.Error("face service call failed", zap.String("operation", operation), zap.Error(err))
	return logging.NewOperationError(operation, "", fmt.Errorf("could not send request: %w", err))
}
