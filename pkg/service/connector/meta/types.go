package meta

// Graph API response shapes, limited to the fields the connector reads

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type profileResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	FollowersCount int64  `json:"followers_count"`
	MediaCount     int64  `json:"media_count"`
}

type insightsResponse struct {
	Data []insightMetric `json:"data"`
}

type insightMetric struct {
	Name   string `json:"name"`
	Period string `json:"period"`
	Values []struct {
		Value   any    `json:"value"`
		EndTime string `json:"end_time"`
	} `json:"values"`
	TotalValue *struct {
		Value any `json:"value"`
	} `json:"total_value"`
}

type mediaListResponse struct {
	Data   []mediaItem `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type mediaItem struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaProduct  string `json:"media_product_type"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

type mediaInsightsResponse struct {
	Data []insightMetric `json:"data"`
}
