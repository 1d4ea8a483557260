// ABOUTME: Multimodal generation with inline or URL images
// ABOUTME: URL images are fetched with a size cap and inlined before the attempt plan runs
package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// MaxImageSize caps a fetched image
	MaxImageSize = 10 * 1024 * 1024
	// imageFetchTimeout bounds one image download
	imageFetchTimeout = 30 * time.Second
)

// GenerateMultimodal generates from contents that may carry images
func (g *Gateway) GenerateMultimodal(ctx context.Context, contents []Content) (string, error) {
	resolved, err := g.inlineImages(ctx, contents)
	if err != nil {
		return "", err
	}
	return g.run(ctx, resolved)
}

// inlineImages returns a copy of contents with every ImageURL part fetched and encoded
func (g *Gateway) inlineImages(ctx context.Context, contents []Content) ([]Content, error) {
	out := make([]Content, len(contents))
	for i, c := range contents {
		parts := make([]Part, len(c.Parts))
		for j, p := range c.Parts {
			if p.ImageURL != "" && p.Data == "" {
				mimeType, data, err := g.fetchImage(ctx, p.ImageURL)
				if err != nil {
					return nil, err
				}
				p = Part{Text: p.Text, MIMEType: mimeType, Data: data}
			}
			parts[j] = p
		}
		out[i] = Content{Role: c.Role, Parts: parts}
	}
	return out, nil
}

// fetchImage downloads url and returns its mime type and base64 body
func (g *Gateway) fetchImage(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("invalid image URL: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("failed to fetch image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return "", "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", "", fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", "", fmt.Errorf("URL did not return an image (%s)", mimeType)
	}

	return mimeType, base64.StdEncoding.EncodeToString(data), nil
}
