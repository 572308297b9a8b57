package codec

import (
	"encoding/json"
	"fmt"
)

// ErrResponse is the unit-variant error sum type published back to a
// single player on a rejected request.
type ErrResponse string

const (
	ErrQuestionLimitReached  ErrResponse = "QuestionLimitReached"
	ErrAnswerAlreadySent     ErrResponse = "AnswerAlreadySent"
	ErrAnswerAlreadySelected ErrResponse = "AnswerAlreadySelected"
)

func (e ErrResponse) MarshalJSON() ([]byte, error) {
	switch e {
	case ErrQuestionLimitReached, ErrAnswerAlreadySent, ErrAnswerAlreadySelected:
		return json.Marshal(string(e))
	default:
		return nil, fmt.Errorf("codec: unknown ErrResponse variant %q", string(e))
	}
}

func (e *ErrResponse) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch ErrResponse(s) {
	case ErrQuestionLimitReached, ErrAnswerAlreadySent, ErrAnswerAlreadySelected:
		*e = ErrResponse(s)
		return nil
	default:
		return fmt.Errorf("codec: unknown ErrResponse variant %q", s)
	}
}
