package models

// StartQuizRequest opens a quiz run. Picking a spirit animal is what spends a heart.
type StartQuizRequest struct {
	Category     string `json:"category" validate:"required,max=64"`
	SpiritAnimal string `json:"spiritAnimal" validate:"required,max=32"`
}

// Question is the current prompt of a quiz session.
type Question struct {
	SessionID string   `json:"sessionId"`
	Index     int      `json:"index"`
	WordID    int64    `json:"wordId"`
	Term      string   `json:"term"`
	Options   []string `json:"options"`
	Score     int      `json:"score"`
	State     string   `json:"state"`
}

// AnswerRequest carries the option picked by the player.
type AnswerRequest struct {
	Selected string `json:"selected" validate:"required"`
}

// AnswerResponse reports the outcome of one answer.
type AnswerResponse struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	Score         int    `json:"score"`
	State         string `json:"state"`
}
