package models

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type SettingsRequest struct {
	Model string `json:"model,omitempty"`
	Mode  string `json:"mode,omitempty"`
}
