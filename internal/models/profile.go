package models

// UserProfile is the feature vector used to place a user in a recommendation cluster
type UserProfile struct {
	Age             int     `json:"age" validate:"gte=0,lte=150"`
	Gender          string  `json:"gender" validate:"notblank,max=64"`
	Occupation      string  `json:"occupation" validate:"notblank,max=128"`
	EducationLevel  string  `json:"education_level" validate:"notblank,max=128"`
	DeviceType      string  `json:"device_type" validate:"notblank,max=64"`
	DailyUsageHours float64 `json:"daily_usage_hours" validate:"gte=0,lte=24"`
}

// RecommendationMode tells the client how the profile for a recommendation was obtained
type RecommendationMode string

const (
	RecommendationModeRandom    RecommendationMode = "random"
	RecommendationModeInputUser RecommendationMode = "input_user"
)

// Recommendation is the response of the recommender endpoints
type Recommendation struct {
	Mode            RecommendationMode `json:"mode"`
	Cluster         int                `json:"cluster"`
	UserUsed        map[string]any     `json:"user_used,omitempty"`
	User            *UserProfile       `json:"user,omitempty"`
	Recommendations []*Document        `json:"recommendations"`
	Reason          string             `json:"reason,omitempty"`
}
