package room

import "github.com/gala377/Auster/internal/v1/codec"

// Process drives the room state machine for one inbound request. It is the
// only place Room is mutated; the runtime actor calls it sequentially, one
// request at a time, and never calls it concurrently for the same room
// (spec.md §4.4).
func Process(r *Room, sender Sender, req codec.Request) Command {
	switch req.Kind {
	case codec.RequestGetRoomState:
		return processGetRoomState(r, sender)
	case codec.RequestDisconnecting:
		return processDisconnecting(r, sender)
	case codec.RequestJoinRoom:
		return processJoinRoom(r, sender, req)
	case codec.RequestAddQuestion:
		return processAddQuestion(r, sender, req)
	case codec.RequestAddAnswer:
		return processAddAnswer(r, sender, req)
	case codec.RequestSelectAnswer:
		return processSelectAnswer(r, sender, req)
	default:
		return Skip()
	}
}

func processGetRoomState(r *Room, sender Sender) Command {
	if sender.IsRuntime {
		return Skip()
	}
	state := codec.RoomStateData{
		State:       r.State.String(),
		PlayersLeft: r.PlayersLimit - len(r.Players),
		RoundsLimit: r.RoundsLimit,
		Scores:      r.Scores(),
	}
	if r.CurrRound != nil {
		state.RoundNum = r.CurrRound.RoundNum
	}
	return Respond(codec.Priv(sender.PlayerID, codec.Response{
		Kind:      codec.ResponseRoomState,
		RoomState: &state,
	}))
}

func processDisconnecting(r *Room, sender Sender) Command {
	if sender.IsRuntime {
		return Skip()
	}
	idx := -1
	for i, p := range r.Players {
		if p.ID == sender.PlayerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Skip()
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	return Respond(codec.Response{
		Kind:               codec.ResponsePlayerDisconnected,
		PlayerDisconnected: &codec.PlayerDisconnectedData{ID: sender.PlayerID},
	})
}

func processJoinRoom(r *Room, sender Sender, req codec.Request) Command {
	if r.State != AcceptingPlayers || sender.IsRuntime || req.JoinRoom == nil {
		return Respond(codec.ErrOf(codec.ErrQuestionLimitReached))
	}
	if _, exists := r.findPlayer(sender.PlayerID); exists {
		return Respond(codec.ErrOf(codec.ErrQuestionLimitReached))
	}
	if len(r.Players) >= r.PlayersLimit {
		return Respond(codec.ErrOf(codec.ErrQuestionLimitReached))
	}

	r.Players = append(r.Players, Player{
		ID:   sender.PlayerID,
		Name: req.JoinRoom.Name,
	})

	if len(r.Players) == r.PlayersLimit {
		r.State = AcceptingQuestions
	}

	return Respond(codec.Response{
		Kind:            codec.ResponseNewPlayerJoined,
		NewPlayerJoined: &codec.NewPlayerJoinedData{ID: sender.PlayerID, Name: req.JoinRoom.Name},
	})
}

func processAddQuestion(r *Room, sender Sender, req codec.Request) Command {
	if r.State != AcceptingQuestions || sender.IsRuntime || req.AddQuestion == nil {
		return Respond(codec.ErrOf(codec.ErrQuestionLimitReached))
	}
	if len(r.Questions) >= r.QuestionThreshold() {
		return Respond(codec.ErrOf(codec.ErrQuestionLimitReached))
	}

	q := Question{
		ID:       len(r.Questions),
		PlayerID: sender.PlayerID,
		Content:  req.AddQuestion.Content,
	}
	r.Questions = append(r.Questions, q)

	if len(r.Questions) == r.QuestionThreshold() {
		r.State = Playing
		r.CurrRound = &Round{
			RoundNum: 0,
			State:    AcceptingAnswers,
			Question: r.Questions[0],
			Answers:  map[codec.PlayerID]string{},
			Polls:    map[codec.PlayerID]codec.PlayerID{},
		}
	}

	return Respond(codec.Response{
		Kind: codec.ResponseQuestionAdded,
		QuestionAdded: &codec.QuestionAddedData{
			ID:       q.ID,
			PlayerID: q.PlayerID,
			Content:  q.Content,
		},
	})
}

func processAddAnswer(r *Room, sender Sender, req codec.Request) Command {
	if r.State != Playing || r.CurrRound == nil || r.CurrRound.State != AcceptingAnswers ||
		sender.IsRuntime || req.AddAnswer == nil {
		return Respond(codec.ErrOf(codec.ErrAnswerAlreadySent))
	}

	round := r.CurrRound
	if _, answered := round.Answers[sender.PlayerID]; answered {
		return Respond(codec.ErrOf(codec.ErrAnswerAlreadySent))
	}

	round.Answers[sender.PlayerID] = req.AddAnswer.Content

	if len(round.Answers) == len(r.Players) {
		round.State = Polling
	}

	return Skip()
}

func processSelectAnswer(r *Room, sender Sender, req codec.Request) Command {
	if r.State != Playing || r.CurrRound == nil || r.CurrRound.State != Polling ||
		sender.IsRuntime || req.SelectAnswer == nil {
		return Respond(codec.ErrOf(codec.ErrAnswerAlreadySelected))
	}

	round := r.CurrRound
	if _, voted := round.Polls[sender.PlayerID]; voted {
		return Respond(codec.ErrOf(codec.ErrAnswerAlreadySelected))
	}

	author := codec.PlayerID(req.SelectAnswer.AnswerID)
	if _, ok := round.Answers[author]; !ok {
		return Respond(codec.ErrOf(codec.ErrAnswerAlreadySelected))
	}
	round.Polls[sender.PlayerID] = author

	if len(round.Polls) < len(r.Players) {
		return Skip()
	}

	return completeRound(r)
}

// completeRound tallies points, retires the current round, and either
// starts the next one or ends the game (spec.md §4.4's "design freedom",
// resolved in SPEC_FULL.md's SUPPLEMENTED FEATURES section).
func completeRound(r *Room) Command {
	round := r.CurrRound
	for voter, author := range round.Polls {
		if voter == author {
			continue
		}
		if p, ok := r.findPlayer(author); ok {
			p.Points++
		}
	}

	r.PastRounds = append(r.PastRounds, *round)
	nextRoundNum := round.RoundNum + 1

	if nextRoundNum == r.RoundsLimit || len(r.Questions) == 0 {
		r.State = Dead
		r.CurrRound = nil
		return Respond(codec.Response{
			Kind:      codec.ResponseGameScore,
			GameScore: &codec.GameScoreData{Scores: r.Scores()},
		})
	}

	nextQuestion := r.Questions[nextRoundNum%len(r.Questions)]
	r.CurrRound = &Round{
		RoundNum: nextRoundNum,
		State:    AcceptingAnswers,
		Question: nextQuestion,
		Answers:  map[codec.PlayerID]string{},
		Polls:    map[codec.PlayerID]codec.PlayerID{},
	}

	return Respond(codec.Response{
		Kind: codec.ResponseNewRound,
		NewRound: &codec.NewRoundData{
			RoundNum: nextRoundNum,
			Question: nextQuestion.Content,
		},
	})
}
