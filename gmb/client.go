//Google Business Profile API 客户端：评价拉取、回复发布、令牌刷新
package gmb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"review-hub/database"
	"review-hub/lifecycle"
	"review-hub/logging"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	// OAuth provider 标识，oauth_tokens 表的 provider 列
	Provider = "google"

	defaultAPIBase  = "https://mybusiness.googleapis.com/v4"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultPageSize = 50
	requestTimeout  = 30 * time.Second
)

// Client 按租户管理令牌的 API 客户端
type Client struct {
	http         *resty.Client
	db           *sql.DB
	apiBase      string
	tokenURL     string
	clientID     string
	clientSecret string
	// 解密后的 access token 进程内缓存，省掉每次请求的解密和查库
	tokens *gocache.Cache
}

// NewClient 创建客户端，OAuth 应用凭据从环境变量读取
func NewClient(db *sql.DB) *Client {
	apiBase := os.Getenv("GMB_API_BASE")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	tokenURL := os.Getenv("GMB_TOKEN_URL")
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	return &Client{
		http:         resty.New().SetTimeout(requestTimeout),
		db:           db,
		apiBase:      apiBase,
		tokenURL:     tokenURL,
		clientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		clientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		tokens:       gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// accessToken 取租户可用的 access token：缓存 -> 数据库 -> 刷新
func (c *Client) accessToken(ctx context.Context, tenantID int) (string, error) {
	cacheKey := fmt.Sprintf("gmb_token_%d", tenantID)
	if cached, ok := c.tokens.Get(cacheKey); ok {
		return cached.(string), nil
	}

	token, err := database.GetOAuthToken(c.db, tenantID, Provider)
	if err != nil {
		return "", fmt.Errorf("读取OAuth令牌失败: %v", err)
	}

	// 提前一分钟当作过期，避免用到边缘上的令牌
	if time.Until(token.ExpiresAt) > time.Minute {
		c.tokens.Set(cacheKey, token.AccessToken, cacheTTL(token.ExpiresAt, time.Now()))
		return token.AccessToken, nil
	}

	refreshed, expiresAt, err := c.refreshAccessToken(ctx, token.RefreshToken)
	if err != nil {
		return "", err
	}
	if err := database.UpdateAccessToken(c.db, tenantID, Provider, refreshed, expiresAt); err != nil {
		return "", err
	}

	c.tokens.Set(cacheKey, refreshed, cacheTTL(expiresAt, time.Now()))
	logging.Info("access token已刷新", logrus.Fields{"tenantID": tenantID})
	return refreshed, nil
}

// cacheTTL 令牌缓存时长：过期前一分钟失效
// 短命令牌也至少缓存几秒，负数会被 go-cache 当成永不过期，绝不能传进去
func cacheTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now) - time.Minute
	if ttl < 10*time.Second {
		ttl = 10 * time.Second
	}
	return ttl
}

// refreshAccessToken 用 refresh token 换新的 access token
func (c *Client) refreshAccessToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	var result tokenRefreshResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"refresh_token": refreshToken,
			"grant_type":    "refresh_token",
		}).
		SetResult(&result).
		Post(c.tokenURL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("令牌刷新请求失败: %v", err)
	}
	if resp.IsError() {
		return "", time.Time{}, &lifecycle.HTTPError{
			Status:  resp.StatusCode(),
			Message: fmt.Sprintf("令牌刷新被拒绝: %s", resp.String()),
		}
	}
	return result.AccessToken, time.Now().Add(time.Duration(result.ExpiresIn) * time.Second), nil
}

// FetchReviews 拉取一个门店的全部评价，自动翻页
// accountLocation 形如 accounts/<id>/locations/<id>
// 每页请求带瞬时故障重试（指数退避，4xx 直接失败）
func (c *Client) FetchReviews(ctx context.Context, tenantID int, accountLocation string) ([]lifecycle.PlatformReview, error) {
	token, err := c.accessToken(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var reviews []lifecycle.PlatformReview
	pageToken := ""
	for {
		var page listReviewsResponse
		err := lifecycle.Retry(ctx, lifecycle.DefaultRetryConfig(), func() error {
			resp, err := c.http.R().
				SetContext(ctx).
				SetAuthToken(token).
				SetQueryParam("pageSize", fmt.Sprintf("%d", defaultPageSize)).
				SetQueryParam("pageToken", pageToken).
				SetResult(&page).
				Get(fmt.Sprintf("%s/%s/reviews", c.apiBase, accountLocation))
			if err != nil {
				return fmt.Errorf("评价拉取请求失败: %v", err)
			}
			if resp.IsError() {
				return &lifecycle.HTTPError{
					Status:  resp.StatusCode(),
					Message: fmt.Sprintf("评价拉取被拒绝: %s", resp.String()),
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, wr := range page.Reviews {
			reviews = append(reviews, toPlatformReview(wr))
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return reviews, nil
}

// PublishReply 发布（或更新）一条评价的商家回复
// reviewName 是平台资源名，通配过的名字先还原不了账号段，所以调用方必须传原始资源名
func (c *Client) PublishReply(ctx context.Context, tenantID int, reviewName, comment string) error {
	token, err := c.accessToken(ctx, tenantID)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]string{"comment": comment}).
		Put(fmt.Sprintf("%s/%s/reply", c.apiBase, reviewName))
	if err != nil {
		return fmt.Errorf("发布回复请求失败: %v", err)
	}
	if resp.IsError() {
		return &lifecycle.HTTPError{
			Status:  resp.StatusCode(),
			Message: fmt.Sprintf("发布回复被拒绝: %s", resp.String()),
		}
	}
	return nil
}

// FetchLocations 拉取账号下的门店列表
// account 形如 accounts/<id>
func (c *Client) FetchLocations(ctx context.Context, tenantID int, account string) ([]Location, error) {
	token, err := c.accessToken(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var locations []Location
	pageToken := ""
	for {
		var page listLocationsResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParam("pageToken", pageToken).
			SetQueryParam("readMask", "name,title,storefrontAddress").
			SetResult(&page).
			Get(fmt.Sprintf("%s/%s/locations", c.apiBase, account))
		if err != nil {
			return nil, fmt.Errorf("门店拉取请求失败: %v", err)
		}
		if resp.IsError() {
			return nil, &lifecycle.HTTPError{
				Status:  resp.StatusCode(),
				Message: fmt.Sprintf("门店拉取被拒绝: %s", resp.String()),
			}
		}

		locations = append(locations, page.Locations...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return locations, nil
}

// Address 门店地址拼接
func (l Location) Address() string {
	parts := append([]string{}, l.StorefrontAddress.AddressLines...)
	if l.StorefrontAddress.Locality != "" {
		parts = append(parts, l.StorefrontAddress.Locality)
	}
	return strings.Join(parts, ", ")
}

// toPlatformReview wire 结构转 lifecycle 的归一化输入
func toPlatformReview(wr wireReview) lifecycle.PlatformReview {
	createTime, _ := time.Parse(time.RFC3339, wr.CreateTime)
	updateTime, _ := time.Parse(time.RFC3339, wr.UpdateTime)
	if updateTime.IsZero() {
		updateTime = createTime
	}

	pr := lifecycle.PlatformReview{
		Name:         wr.Name,
		ReviewerName: wr.Reviewer.DisplayName,
		StarRating:   wr.StarRating,
		Comment:      wr.Comment,
		CreateTime:   createTime,
		UpdateTime:   updateTime,
	}
	if wr.ReviewReply != nil {
		replyTime, _ := time.Parse(time.RFC3339, wr.ReviewReply.UpdateTime)
		pr.Reply = &lifecycle.PlatformReply{
			Comment:    wr.ReviewReply.Comment,
			UpdateTime: replyTime,
		}
	}
	return pr
}
