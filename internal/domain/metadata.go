package domain

// CampaignMetadata is the off-ledger descriptive document a campaign's
// MetadataURI points at. The registry stores the URI opaquely and never
// interprets this shape; only clients and the metadata service do.
type CampaignMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	BrandName   string   `json:"brandName"`
	BrandLogo   string   `json:"brandLogo"`
	Duration    int      `json:"duration"`
	Difficulty  string   `json:"difficulty"`
	Tags        []string `json:"tags"`

	// Type-specific data, present depending on Type.
	VideoURL         string           `json:"videoUrl,omitempty"`
	VideoDuration    int              `json:"videoDuration,omitempty"`
	SurveyQuestions  []SurveyQuestion `json:"surveyQuestions,omitempty"`
	QuizQuestions    []QuizQuestion   `json:"quizQuestions,omitempty"`
	ShareMessage     string           `json:"shareMessage,omitempty"`
	SharePreviewText string           `json:"sharePreviewText,omitempty"`
}

// SurveyQuestion is a single survey prompt.
type SurveyQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"` // single, multiple, rating
	Options  []string `json:"options,omitempty"`
}

// QuizQuestion is a single quiz prompt with its answer key.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// VideoInfo is the advisory lookup result the youtube service resolves for
// VIDEO campaign metadata. It never affects ledger state.
type VideoInfo struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Duration  int    `json:"duration_seconds"`
	ViewCount uint64 `json:"view_count"`
}
