package service

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Preview is the link unfurling result served to the editor when a link
// node is created.
type Preview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type PreviewService struct {
	client       *http.Client
	maxBodyBytes int64
}

func NewPreviewService(timeout time.Duration, maxBodyBytes int64) *PreviewService {
	return &PreviewService{
		client:       &http.Client{Timeout: timeout},
		maxBodyBytes: maxBodyBytes,
	}
}

// Fetch downloads the target page and extracts title, description and
// preview image from its meta tags. Loopback and private hosts are blocked.
func (s *PreviewService) Fetch(ctx context.Context, rawURL string) (*Preview, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrPreviewInvalidURL
	}

	if blockedHost(u.Hostname()) {
		return nil, ErrPreviewBlocked
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, ErrPreviewInvalidURL
	}
	req.Header.Set("User-Agent", "caseboard-preview/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrPreviewTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ErrPreviewInvalidURL
	}

	return parsePreview(io.LimitReader(resp.Body, s.maxBodyBytes)), nil
}

func blockedHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parsePreview(r io.Reader) *Preview {
	p := &Preview{}
	z := html.NewTokenizer(r)

	for {
		switch z.Next() {
		case html.ErrorToken:
			return p

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "meta":
				var key, content string
				for _, attr := range tok.Attr {
					switch attr.Key {
					case "property", "name":
						key = strings.ToLower(attr.Val)
					case "content":
						content = attr.Val
					}
				}
				switch key {
				case "og:title":
					p.Title = content
				case "og:description", "description":
					if p.Description == "" || key == "og:description" {
						p.Description = content
					}
				case "og:image":
					p.Image = content
				}
			case "title":
				if z.Next() == html.TextToken && p.Title == "" {
					p.Title = strings.TrimSpace(string(z.Text()))
				}
			case "body":
				// meta tags live in head; stop before scanning the page
				return p
			}
		}
	}
}
