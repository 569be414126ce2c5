package gmb

// Google Business Profile API 的 wire 结构

type wireReviewer struct {
	DisplayName string `json:"displayName"`
	IsAnonymous bool   `json:"isAnonymous"`
}

type wireReviewReply struct {
	Comment    string `json:"comment"`
	UpdateTime string `json:"updateTime"`
}

type wireReview struct {
	Name        string           `json:"name"` // accounts/<id>/locations/<id>/reviews/<id>
	Reviewer    wireReviewer     `json:"reviewer"`
	StarRating  string           `json:"starRating"` // FIVE / FOUR / THREE / TWO / ONE
	Comment     string           `json:"comment"`
	CreateTime  string           `json:"createTime"`
	UpdateTime  string           `json:"updateTime"`
	ReviewReply *wireReviewReply `json:"reviewReply,omitempty"`
}

type listReviewsResponse struct {
	Reviews       []wireReview `json:"reviews"`
	NextPageToken string       `json:"nextPageToken"`
	TotalSize     int          `json:"totalReviewCount"`
}

// Location 账号下的一个门店（handlers 同步门店列表时直接消费）
type Location struct {
	Name              string `json:"name"` // accounts/<id>/locations/<id>
	Title             string `json:"title"`
	StorefrontAddress struct {
		AddressLines []string `json:"addressLines"`
		Locality     string   `json:"locality"`
	} `json:"storefrontAddress"`
}

type listLocationsResponse struct {
	Locations     []Location `json:"locations"`
	NextPageToken string     `json:"nextPageToken"`
}

type tokenRefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}
