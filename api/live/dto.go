package liveapi

// SpeedRequest changes the number of steps run per frame.
type SpeedRequest struct {
	Action string `json:"action" binding:"required,oneof=faster slower reset boost"`
}

// SpeedResponse reports the speed after the change.
type SpeedResponse struct {
	Speed int `json:"speed"`
}
