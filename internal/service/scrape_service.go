package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"multichat/internal/model"
	"multichat/internal/pkg/textproc"
)

const (
	scrapeTimeout   = 10 * time.Second
	scrapeMaxBody   = 5 << 20
	scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// ScrapeService 网页抓取服务
type ScrapeService struct {
	client *http.Client
}

// NewScrapeService 创建网页抓取服务，client 为 nil 时使用 10s 超时的默认客户端
func NewScrapeService(client *http.Client) *ScrapeService {
	if client == nil {
		client = &http.Client{Timeout: scrapeTimeout}
	}
	return &ScrapeService{client: client}
}

// Scrape 抓取网页，返回标题和清洗后的正文（最多 5000 字符）
func (s *ScrapeService) Scrape(ctx context.Context, rawURL string) (*model.ScrapeResponse, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrUpstream, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrUpstream, u, resp.StatusCode)
	}

	page, err := textproc.ExtractHTML(io.LimitReader(resp.Body, scrapeMaxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	text := textproc.Truncate(page.Text, textproc.MaxScrapeChars)
	log.Info().Str("url", u.String()).Int("chars", len([]rune(text))).Msg("url scraped")

	return &model.ScrapeResponse{
		Success: true,
		URL:     u.String(),
		Title:   page.Title,
		Content: fmt.Sprintf("Title: %s\n\n%s", page.Title, text),
	}, nil
}
