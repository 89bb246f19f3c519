package engine

import (
	"ludoserver/ludo/board"
)

// PlayerState はスナップショット上のプレイヤー
type PlayerState struct {
	ID        string      `json:"id"`
	Color     board.Color `json:"color"`
	Connected bool        `json:"connected"`
}

// Snapshot はゲーム状態の完全な表現。クライアントは受け取るたびに丸ごと置き換える
type Snapshot struct {
	Version       uint64           `json:"version"`
	RoomCode      string           `json:"roomCode"`
	Players       []PlayerState    `json:"players"`
	CurrentTurn   string           `json:"currentTurn"`
	Dice          *int             `json:"dice"`
	Tokens        map[string][]int `json:"tokens"`
	Phase         Phase            `json:"phase"`
	Winner        string           `json:"winner,omitempty"`
	MovableTokens []int            `json:"movableTokens,omitempty"`
	LastRoll      *LastRoll        `json:"lastRoll,omitempty"`
}

// Snapshot は現在の状態をディープコピーします。他のゴルーチンに渡しても安全
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		Version:       g.version,
		RoomCode:      g.roomCode,
		Players:       make([]PlayerState, len(g.players)),
		CurrentTurn:   g.CurrentTurn(),
		Tokens:        make(map[string][]int, len(g.tokens)),
		Phase:         g.phase,
		Winner:        g.winner,
		MovableTokens: g.MovableTokens(),
	}
	for i, p := range g.players {
		s.Players[i] = PlayerState{ID: p.ID, Color: p.Color, Connected: p.Connected}
	}
	for id, tokens := range g.tokens {
		s.Tokens[id] = append([]int(nil), tokens[:]...)
	}
	if g.dice != 0 {
		dice := g.dice
		s.Dice = &dice
	}
	if g.lastRoll != nil {
		lr := *g.lastRoll
		s.LastRoll = &lr
	}
	return s
}

// Clone はスナップショットのディープコピー
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Players = append([]PlayerState(nil), s.Players...)
	out.MovableTokens = append([]int(nil), s.MovableTokens...)
	if s.Tokens != nil {
		out.Tokens = make(map[string][]int, len(s.Tokens))
		for id, t := range s.Tokens {
			out.Tokens[id] = append([]int(nil), t...)
		}
	}
	if s.Dice != nil {
		d := *s.Dice
		out.Dice = &d
	}
	if s.LastRoll != nil {
		lr := *s.LastRoll
		out.LastRoll = &lr
	}
	return out
}
