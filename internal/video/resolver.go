// Package video は発表動画のサムネイルURLを解決する。
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/hitoshi/trug/internal/cache"
	"github.com/hitoshi/trug/internal/security"
)

const (
	ProviderYouTube = "youtube"
	ProviderVimeo   = "vimeo"

	// DefaultVimeoOEmbedURL はvimeoのoEmbedエンドポイント。
	DefaultVimeoOEmbedURL = "https://vimeo.com/api/oembed.json"

	// DefaultCacheTTL はvimeoサムネイルURLのキャッシュ期間。
	DefaultCacheTTL = 24 * time.Hour

	// maxOEmbedSize はoEmbed応答の最大読み取りサイズ。
	maxOEmbedSize = 64 * 1024
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ResolverConfig はResolverの設定。
type ResolverConfig struct {
	HTTPClient *http.Client  // 未指定の場合はURLGuardのセーフクライアントを使用する
	Timeout    time.Duration // セーフクライアントのタイムアウト
	CacheTTL   time.Duration
	OEmbedURL  string // テスト用にvimeoのエンドポイントを差し替える
}

// Resolver は動画プロバイダとIDからサムネイル画像のURLを求める。
type Resolver struct {
	client    *http.Client
	guard     security.URLGuardService
	cache     cache.Cache
	cacheTTL  time.Duration
	oembedURL string
}

// NewResolver は新しいResolverを生成する。
func NewResolver(config ResolverConfig, guard security.URLGuardService, c cache.Cache) *Resolver {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.OEmbedURL == "" {
		config.OEmbedURL = DefaultVimeoOEmbedURL
	}
	client := config.HTTPClient
	if client == nil {
		client = guard.NewSafeClient(config.Timeout)
	}
	return &Resolver{
		client:    client,
		guard:     guard,
		cache:     c,
		cacheTTL:  config.CacheTTL,
		oembedURL: config.OEmbedURL,
	}
}

// ThumbnailURL はサムネイル画像のURLを返す。
// 未対応のプロバイダ、不正なID、取得失敗の場合は空文字を返す。
func (r *Resolver) ThumbnailURL(ctx context.Context, provider, videoID string) string {
	if !videoIDPattern.MatchString(videoID) {
		return ""
	}

	switch provider {
	case ProviderYouTube:
		return "https://img.youtube.com/vi/" + videoID + "/sddefault.jpg"
	case ProviderVimeo:
		return r.vimeoThumbnail(ctx, videoID)
	default:
		return ""
	}
}

func cacheKey(videoID string) string {
	return "vimeo_thumb_" + videoID
}

func (r *Resolver) vimeoThumbnail(ctx context.Context, videoID string) string {
	// 1. キャッシュを参照
	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, cacheKey(videoID))
		if err != nil {
			slog.Warn("thumbnail cache read failed", slog.String("error", err.Error()))
		} else if ok {
			return cached
		}
	}

	// 2. oEmbedから取得（失敗はキャッシュしない）
	thumb, err := r.fetchVimeoThumbnail(ctx, videoID)
	if err != nil {
		slog.Error("vimeo thumbnail lookup failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		return ""
	}

	// 3. キャッシュに保存
	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey(videoID), thumb, r.cacheTTL); err != nil {
			slog.Warn("thumbnail cache write failed", slog.String("error", err.Error()))
		}
	}
	return thumb
}

type oembedResponse struct {
	ThumbnailURL string `json:"thumbnail_url"`
}

func (r *Resolver) fetchVimeoThumbnail(ctx context.Context, videoID string) (string, error) {
	endpoint, err := url.Parse(r.oembedURL)
	if err != nil {
		return "", fmt.Errorf("invalid oEmbed URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("url", "https://vimeo.com/"+videoID)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oEmbed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oEmbed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOEmbedSize))
	if err != nil {
		return "", fmt.Errorf("failed to read oEmbed response: %w", err)
	}

	var data oembedResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("failed to decode oEmbed response: %w", err)
	}
	if err := r.guard.ValidateImageURL(data.ThumbnailURL); err != nil {
		return "", fmt.Errorf("rejected thumbnail_url: %w", err)
	}
	return data.ThumbnailURL, nil
}
