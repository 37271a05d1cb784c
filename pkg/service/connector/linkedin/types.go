package linkedin

type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

type userinfoResponse struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

type followerStatsResponse struct {
	Elements []followerStatsElement `json:"elements"`
}

type followerStatsElement struct {
	TimeRange struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"timeRange"`
	FollowerGains struct {
		OrganicFollowerGain int64 `json:"organicFollowerGain"`
		PaidFollowerGain    int64 `json:"paidFollowerGain"`
	} `json:"followerGains"`
}

type shareStatsResponse struct {
	Elements []shareStatsElement `json:"elements"`
}

type shareStatsElement struct {
	TimeRange struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"timeRange"`
	TotalShareStatistics struct {
		ImpressionCount int64 `json:"impressionCount"`
		ClickCount      int64 `json:"clickCount"`
		LikeCount       int64 `json:"likeCount"`
		CommentCount    int64 `json:"commentCount"`
		ShareCount      int64 `json:"shareCount"`
		EngagementRate  float64 `json:"engagement"`
	} `json:"totalShareStatistics"`
}

type postsResponse struct {
	Elements []postElement `json:"elements"`
}

type postElement struct {
	ID          string `json:"id"`
	Commentary  string `json:"commentary"`
	PublishedAt int64  `json:"publishedAt"`
	Content     struct {
		Media struct {
			ID string `json:"id"`
		} `json:"media"`
	} `json:"content"`
}

type socialActionsResponse struct {
	LikesSummary struct {
		TotalLikes int64 `json:"totalLikes"`
	} `json:"likesSummary"`
	CommentsSummary struct {
		TotalComments int64 `json:"totalFirstLevelComments"`
	} `json:"commentsSummary"`
}
