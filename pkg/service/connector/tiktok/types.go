package tiktok

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	OpenID           string `json:"open_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type userInfoResponse struct {
	Data struct {
		User struct {
			OpenID         string `json:"open_id"`
			DisplayName    string `json:"display_name"`
			FollowerCount  int64  `json:"follower_count"`
			FollowingCount int64  `json:"following_count"`
			LikesCount     int64  `json:"likes_count"`
			VideoCount     int64  `json:"video_count"`
		} `json:"user"`
	} `json:"data"`
	Error apiError `json:"error"`
}

type videoListResponse struct {
	Data struct {
		Videos  []videoItem `json:"videos"`
		Cursor  int64       `json:"cursor"`
		HasMore bool        `json:"has_more"`
	} `json:"data"`
	Error apiError `json:"error"`
}

type videoItem struct {
	ID            string `json:"id"`
	CreateTime    int64  `json:"create_time"`
	VideoDesc     string `json:"video_description"`
	CoverImageURL string `json:"cover_image_url"`
	ShareURL      string `json:"share_url"`
	Duration      int64  `json:"duration"`
	ViewCount     int64  `json:"view_count"`
	LikeCount     int64  `json:"like_count"`
	CommentCount  int64  `json:"comment_count"`
	ShareCount    int64  `json:"share_count"`
}

// apiError is TikTok's envelope error. Code "ok" means success.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) ok() bool {
	return e.Code == "" || e.Code == "ok"
}
