// Package codec implements the externally-tagged JSON wire format shared by
// every room topic: Request (player/runtime inbound), Response (outbound
// broadcast or private), and ErrResponse (outbound error).
package codec

import (
	"encoding/json"
	"fmt"
)

// RequestKind names a Request variant. The string value is the exact JSON
// tag used on the wire.
type RequestKind string

const (
	RequestGetRoomState  RequestKind = "GetRoomState"
	RequestJoinRoom      RequestKind = "JoinRoom"
	RequestAddQuestion   RequestKind = "AddQuestion"
	RequestAddAnswer     RequestKind = "AddAnswer"
	RequestSelectAnswer  RequestKind = "SelectAnswer"
	RequestDisconnecting RequestKind = "Disconnecting"
)

// JoinRoomData carries the display name chosen by a joining player.
type JoinRoomData struct {
	Name string `json:"name"`
}

// AddQuestionData carries the free-text question content.
type AddQuestionData struct {
	Content string `json:"content"`
}

// AddAnswerData carries the free-text answer content.
type AddAnswerData struct {
	Content string `json:"content"`
}

// SelectAnswerData names the answer a player is polling for.
type SelectAnswerData struct {
	AnswerID int `json:"answer_id"`
}

// Request is a tagged union over the inbound message variants. Exactly one
// of the Data fields is populated, selected by Kind; unit variants
// (GetRoomState, Disconnecting) leave all Data fields nil.
type Request struct {
	Kind         RequestKind
	JoinRoom     *JoinRoomData
	AddQuestion  *AddQuestionData
	AddAnswer    *AddAnswerData
	SelectAnswer *SelectAnswerData
}

// MarshalJSON renders unit variants as a bare JSON string and data-carrying
// variants as a single-key object, matching the externally-tagged scheme
// spec'd for the wire (variant names appear verbatim).
func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RequestGetRoomState, RequestDisconnecting:
		return json.Marshal(string(r.Kind))
	case RequestJoinRoom:
		return json.Marshal(map[string]JoinRoomData{string(r.Kind): valueOrZero(r.JoinRoom)})
	case RequestAddQuestion:
		return json.Marshal(map[string]AddQuestionData{string(r.Kind): valueOrZero(r.AddQuestion)})
	case RequestAddAnswer:
		return json.Marshal(map[string]AddAnswerData{string(r.Kind): valueOrZero(r.AddAnswer)})
	case RequestSelectAnswer:
		return json.Marshal(map[string]SelectAnswerData{string(r.Kind): valueOrZero(r.SelectAnswer)})
	default:
		return nil, fmt.Errorf("codec: unknown request kind %q", r.Kind)
	}
}

// UnmarshalJSON accepts either a bare string (unit variant) or a single-key
// object (data-carrying variant).
func (r *Request) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		switch RequestKind(asString) {
		case RequestGetRoomState, RequestDisconnecting:
			*r = Request{Kind: RequestKind(asString)}
			return nil
		default:
			return fmt.Errorf("codec: unknown unit request variant %q", asString)
		}
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMap); err != nil {
		return fmt.Errorf("codec: request is neither a string nor an object: %w", err)
	}
	if len(asMap) != 1 {
		return fmt.Errorf("codec: tagged request object must have exactly one key, got %d", len(asMap))
	}

	for kind, raw := range asMap {
		switch RequestKind(kind) {
		case RequestJoinRoom:
			var d JoinRoomData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Request{Kind: RequestJoinRoom, JoinRoom: &d}
		case RequestAddQuestion:
			var d AddQuestionData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Request{Kind: RequestAddQuestion, AddQuestion: &d}
		case RequestAddAnswer:
			var d AddAnswerData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Request{Kind: RequestAddAnswer, AddAnswer: &d}
		case RequestSelectAnswer:
			var d SelectAnswerData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Request{Kind: RequestSelectAnswer, SelectAnswer: &d}
		default:
			return fmt.Errorf("codec: unknown tagged request variant %q", kind)
		}
	}
	return nil
}

func valueOrZero[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
