package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.bilibili.com"
	DefaultPageSize = 30
	defaultTimeout  = 30 * time.Second
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64) creator-archiver"
)

// ErrNotFound reports that the requested video or account no longer exists
// or is not visible.
var ErrNotFound = errors.New("upstream: not found")

// Response codes the API uses for deleted, private or audited videos.
var notFoundCodes = map[int]bool{
	-404:  true,
	62002: true,
	62004: true,
	62012: true,
}

// Credential is the browser session sent as cookies.
type Credential struct {
	SessData string
	BiliJCT  string
	Buvid3   string
}

func (c Credential) Empty() bool {
	return strings.TrimSpace(c.SessData) == "" &&
		strings.TrimSpace(c.BiliJCT) == "" &&
		strings.TrimSpace(c.Buvid3) == ""
}

func (c Credential) cookieHeader() string {
	parts := make([]string, 0, 3)
	if v := strings.TrimSpace(c.SessData); v != "" {
		parts = append(parts, "SESSDATA="+v)
	}
	if v := strings.TrimSpace(c.BiliJCT); v != "" {
		parts = append(parts, "bili_jct="+v)
	}
	if v := strings.TrimSpace(c.Buvid3); v != "" {
		parts = append(parts, "buvid3="+v)
	}
	return strings.Join(parts, "; ")
}

type Config struct {
	BaseURL         string
	Credential      Credential
	PageSize        int
	RequestInterval time.Duration // minimum spacing between requests; 0 disables pacing
	Timeout         time.Duration
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Client talks to the account listing and video info endpoints.
type Client struct {
	baseURL    string
	credential Credential
	pageSize   int
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		credential: cfg.Credential,
		pageSize:   cfg.PageSize,
		limiter:    limiter,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ListedVideo is one row of an account's upload listing.
type ListedVideo struct {
	ID     string
	Title  string
	Length string
}

// VideoPage is one part of a multi-part video.
type VideoPage struct {
	CID      int64  `json:"cid"`
	Page     int    `json:"page"`
	Part     string `json:"part"`
	Duration int    `json:"duration"`
}

// VideoInfo is the subset of the view endpoint the archiver uses. Raw keeps
// the undecoded data object.
type VideoInfo struct {
	ID       string          `json:"bvid"`
	Title    string          `json:"title"`
	Duration int             `json:"duration"`
	Pages    []VideoPage     `json:"pages"`
	Raw      json.RawMessage `json:"-"`
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listData struct {
	List struct {
		VList []struct {
			BVID   string `json:"bvid"`
			Title  string `json:"title"`
			Length string `json:"length"`
		} `json:"vlist"`
	} `json:"list"`
}

// ListVideos returns one page (1-based) of the account's uploads. An empty
// result marks the end of the listing.
func (c *Client) ListVideos(ctx context.Context, accountID string, page int) ([]ListedVideo, error) {
	q := url.Values{}
	q.Set("mid", strings.TrimSpace(accountID))
	q.Set("pn", strconv.Itoa(page))
	q.Set("ps", strconv.Itoa(c.pageSize))

	data, err := c.get(ctx, "/x/space/arc/search", q)
	if err != nil {
		return nil, fmt.Errorf("list videos for %s page %d: %w", accountID, page, err)
	}
	var decoded listData
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode video list for %s page %d: %w", accountID, page, err)
	}
	out := make([]ListedVideo, 0, len(decoded.List.VList))
	for _, v := range decoded.List.VList {
		out = append(out, ListedVideo{
			ID:     strings.TrimSpace(v.BVID),
			Title:  v.Title,
			Length: v.Length,
		})
	}
	return out, nil
}

func (c *Client) VideoInfo(ctx context.Context, videoID string) (VideoInfo, error) {
	q := url.Values{}
	q.Set("bvid", strings.TrimSpace(videoID))

	data, err := c.get(ctx, "/x/web-interface/view", q)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("video info %s: %w", videoID, err)
	}
	var info VideoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return VideoInfo{}, fmt.Errorf("decode video info %s: %w", videoID, err)
	}
	info.Raw = data
	return info, nil
}

// AccountName resolves the display name used for the per-account output
// directory.
func (c *Client) AccountName(ctx context.Context, accountID string) (string, error) {
	q := url.Values{}
	q.Set("mid", strings.TrimSpace(accountID))

	data, err := c.get(ctx, "/x/space/acc/info", q)
	if err != nil {
		return "", fmt.Errorf("account info %s: %w", accountID, err)
	}
	var decoded struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode account info %s: %w", accountID, err)
	}
	name := strings.TrimSpace(decoded.Name)
	if name == "" {
		return "", fmt.Errorf("account info %s: empty name", accountID)
	}
	return name, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://www.bilibili.com/")
	if cookie := c.credential.cookieHeader(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	c.logger.Debug("upstream request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if notFoundCodes[env.Code] {
		return nil, fmt.Errorf("%w (code %d: %s)", ErrNotFound, env.Code, env.Message)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("api error code %d: %s", env.Code, env.Message)
	}
	return env.Data, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
