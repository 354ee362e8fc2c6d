package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"meetsync/internal/config"
	"meetsync/internal/models"
	"meetsync/internal/vtt"
)

// maxCaptionBytes caps a caption download
const maxCaptionBytes = 16 << 20

// CaptionClient downloads a meeting's caption track with the session cookies
type CaptionClient struct {
	httpClient *http.Client
	site       func() *config.SiteProfile
	retry      RetryConfig
	userAgent  string
}

// NewCaptionClient creates a client with pooled connections
func NewCaptionClient(site func() *config.SiteProfile, timeout time.Duration) *CaptionClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &CaptionClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (max 10)")
				}
				return nil
			},
		},
		site:      site,
		retry:     DefaultRetryConfig,
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	}
}

// Fetch downloads and parses the caption track at url.
// A redirect to the sign-in page fails with SessionExpired, an empty track with NotFound.
func (c *CaptionClient) Fetch(ctx context.Context, cookies []models.Cookie, url string) (*models.TranscriptResult, error) {
	body, err := RetryDo(ctx, c.retry, func() (string, error) {
		return c.get(ctx, cookies, url)
	})
	if err != nil {
		var serviceErr *models.ServiceError
		if errors.As(err, &serviceErr) {
			return nil, err
		}
		return nil, models.NewError(models.KindTransient, "caption download failed", err)
	}

	segments := vtt.Parse(body)
	if len(segments) == 0 {
		return nil, models.NewError(models.KindNotFound, "caption track has no cues", nil)
	}

	result := vtt.ToResult(segments)
	log.Printf("📝 [CAPTIONS] Parsed %d cues from caption track", result.SegmentCount)
	return &result, nil
}

func (c *CaptionClient) get(ctx context.Context, cookies []models.Cookie, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", models.NewError(models.KindMalformedInput, "invalid caption url", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/vtt,text/plain;q=0.9,*/*;q=0.5")
	if header := cookieHeader(cookies); header != "" {
		req.Header.Set("Cookie", header)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if c.site().IsLoginURL(resp.Request.URL.String()) {
		return "", models.ErrSessionExpired
	}
	if isRetryableStatus(resp.StatusCode) {
		return "", newHTTPStatusError(resp)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", models.ErrSessionExpired
	case resp.StatusCode == http.StatusNotFound:
		return "", models.NewError(models.KindNotFound, "caption track not found", nil)
	case resp.StatusCode >= 400:
		return "", models.NewError(models.KindTransient, fmt.Sprintf("caption download returned %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptionBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read caption body: %w", err)
	}
	return string(data), nil
}

// cookieHeader renders the jar as a Cookie request header. Values are passed through verbatim.
func cookieHeader(cookies []models.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
