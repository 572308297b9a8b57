package codec

import (
	"encoding/json"
	"fmt"
)

// PlayerID is the small, room-dense integer identifying a player (spec.md
// §3's PlayerId). It is part of the wire format: it appears verbatim in
// NewPlayerJoined/PlayerDisconnected payloads and as the first element of a
// Priv tuple.
type PlayerID int

// ResponseKind names a Response variant. The string value is the exact
// JSON tag used on the wire.
type ResponseKind string

const (
	ResponseRuntimeStarted     ResponseKind = "RuntimeStarted"
	ResponseNewPlayerJoined    ResponseKind = "NewPlayerJoined"
	ResponsePlayerDisconnected ResponseKind = "PlayerDisconnected"
	ResponseQuestionAdded      ResponseKind = "QuestionAdded"
	ResponseNewRound           ResponseKind = "NewRound"
	ResponseGameScore          ResponseKind = "GameScore"
	ResponseRoomState          ResponseKind = "RoomState"
	responseErr                ResponseKind = "Err"
	responsePriv               ResponseKind = "Priv"
)

// NewPlayerJoinedData announces a newly seated player.
type NewPlayerJoinedData struct {
	ID   PlayerID `json:"id"`
	Name string   `json:"name"`
}

// PlayerDisconnectedData announces a player leaving.
type PlayerDisconnectedData struct {
	ID PlayerID `json:"id"`
}

// QuestionAddedData announces a newly authored question.
type QuestionAddedData struct {
	ID       int      `json:"id"`
	PlayerID PlayerID `json:"player_id"`
	Content  string   `json:"content"`
}

// NewRoundData announces the start of a round with its question.
type NewRoundData struct {
	RoundNum int    `json:"round_num"`
	Question string `json:"question"`
}

// GameScoreData announces the final score when a room's rounds are
// exhausted.
type GameScoreData struct {
	Scores map[PlayerID]int `json:"scores"`
}

// RoomStateData is the private snapshot returned for GetRoomState.
type RoomStateData struct {
	State       string           `json:"state"`
	PlayersLeft int              `json:"players_left"`
	RoundNum    int              `json:"round_num"`
	RoundsLimit int              `json:"rounds_limit"`
	Scores      map[PlayerID]int `json:"scores"`
}

// Response is a tagged union over every outbound message variant,
// including the two wrapper kinds Err and Priv.
type Response struct {
	Kind ResponseKind

	NewPlayerJoined    *NewPlayerJoinedData
	PlayerDisconnected *PlayerDisconnectedData
	QuestionAdded      *QuestionAddedData
	NewRound           *NewRoundData
	GameScore          *GameScoreData
	RoomState          *RoomStateData

	Err *ErrResponse

	PrivTarget PlayerID
	PrivInner  *Response
}

// Broadcast builds a unit-variant Response (RuntimeStarted).
func Broadcast(kind ResponseKind) Response {
	return Response{Kind: kind}
}

// Priv wraps inner as a private response addressed to target.
func Priv(target PlayerID, inner Response) Response {
	return Response{Kind: responsePriv, PrivTarget: target, PrivInner: &inner}
}

// ErrOf wraps an ErrResponse as a Response.
func ErrOf(e ErrResponse) Response {
	return Response{Kind: responseErr, Err: &e}
}

// IsErr reports whether r is an Err-wrapped response. The runtime actor
// uses this to route it to the rejecting sender's own read topic rather
// than broadcasting it (spec.md §4.4 example "Duplicate answer").
func (r Response) IsErr() bool {
	return r.Kind == responseErr
}

// IsPriv reports whether r is a Priv-wrapped response.
func (r Response) IsPriv() bool {
	return r.Kind == responsePriv
}

func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ResponseRuntimeStarted:
		return json.Marshal(string(r.Kind))
	case ResponseNewPlayerJoined:
		return json.Marshal(map[string]NewPlayerJoinedData{string(r.Kind): valueOrZero(r.NewPlayerJoined)})
	case ResponsePlayerDisconnected:
		return json.Marshal(map[string]PlayerDisconnectedData{string(r.Kind): valueOrZero(r.PlayerDisconnected)})
	case ResponseQuestionAdded:
		return json.Marshal(map[string]QuestionAddedData{string(r.Kind): valueOrZero(r.QuestionAdded)})
	case ResponseNewRound:
		return json.Marshal(map[string]NewRoundData{string(r.Kind): valueOrZero(r.NewRound)})
	case ResponseGameScore:
		return json.Marshal(map[string]GameScoreData{string(r.Kind): valueOrZero(r.GameScore)})
	case ResponseRoomState:
		return json.Marshal(map[string]RoomStateData{string(r.Kind): valueOrZero(r.RoomState)})
	case responseErr:
		if r.Err == nil {
			return nil, fmt.Errorf("codec: Err response missing ErrResponse payload")
		}
		return json.Marshal(map[string]ErrResponse{string(responseErr): *r.Err})
	case responsePriv:
		if r.PrivInner == nil {
			return nil, fmt.Errorf("codec: Priv response missing inner payload")
		}
		return json.Marshal(map[string]any{
			string(responsePriv): []any{r.PrivTarget, *r.PrivInner},
		})
	default:
		return nil, fmt.Errorf("codec: unknown response kind %q", r.Kind)
	}
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if ResponseKind(asString) == ResponseRuntimeStarted {
			*r = Response{Kind: ResponseRuntimeStarted}
			return nil
		}
		return fmt.Errorf("codec: unknown unit response variant %q", asString)
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMap); err != nil {
		return fmt.Errorf("codec: response is neither a string nor an object: %w", err)
	}
	if len(asMap) != 1 {
		return fmt.Errorf("codec: tagged response object must have exactly one key, got %d", len(asMap))
	}

	for kind, raw := range asMap {
		switch ResponseKind(kind) {
		case ResponseNewPlayerJoined:
			var d NewPlayerJoinedData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Response{Kind: ResponseNewPlayerJoined, NewPlayerJoined: &d}
		case ResponsePlayerDisconnected:
			var d PlayerDisconnectedData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Response{Kind: ResponsePlayerDisconnected, PlayerDisconnected: &d}
		case ResponseQuestionAdded:
			var d QuestionAddedData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Response{Kind: ResponseQuestionAdded, QuestionAdded: &d}
		case ResponseNewRound:
			var d NewRoundData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Response{Kind: ResponseNewRound, NewRound: &d}
		case ResponseGameScore:
			var d GameScoreData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Response{Kind: ResponseGameScore, GameScore: &d}
		case ResponseRoomState:
			var d RoomStateData
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			*r = Response{Kind: ResponseRoomState, RoomState: &d}
		case responseErr:
			var e ErrResponse
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			*r = Response{Kind: responseErr, Err: &e}
		case responsePriv:
			var tuple [2]json.RawMessage
			if err := json.Unmarshal(raw, &tuple); err != nil {
				return fmt.Errorf("codec: Priv payload must be a 2-tuple: %w", err)
			}
			var target PlayerID
			if err := json.Unmarshal(tuple[0], &target); err != nil {
				return err
			}
			var inner Response
			if err := json.Unmarshal(tuple[1], &inner); err != nil {
				return err
			}
			*r = Response{Kind: responsePriv, PrivTarget: target, PrivInner: &inner}
		default:
			return fmt.Errorf("codec: unknown tagged response variant %q", kind)
		}
	}
	return nil
}
