// Package engine はルード1ゲーム分の権威的な状態とルールを実装します。
//
// Game はスレッドセーフではありません。1ルームにつき1つの所有者（registry.Room）が
// ミューテックスの下で直列に呼び出す前提です。全ての操作は同期的な純粋な状態遷移で、
// ブロックしません。
package engine

import (
	"fmt"

	"ludoserver/ludo/board"
)

// Phase はゲームのフェーズ
type Phase string

const (
	PhaseWaiting Phase = "WAITING"
	PhaseRoll    Phase = "ROLL"
	PhaseMove    Phase = "MOVE"
	PhaseEnd     Phase = "END"
)

// Player は着席したプレイヤー。色はルームが存続する限り変わらない
type Player struct {
	ID         string
	Color      board.Color
	Connected  bool
	InRotation bool // false の場合ターンのローテーションから外れる（ルーム側のポリシー）
}

// LastRoll は直近に振られたサイコロ。手番が自動で進んだ場合も記録が残る
type LastRoll struct {
	PlayerID string `json:"playerId"`
	Value    int    `json:"value"`
}

// RollResult は RollDice の結果
type RollResult struct {
	Value      int
	Movable    []int
	TurnPassed bool // 動かせるトークンが無く手番が次に進んだ
}

// Capture は捕獲されてベースに戻されたトークン
type Capture struct {
	PlayerID string
	TokenID  int
	From     int
}

// MoveResult は MoveToken の結果
type MoveResult struct {
	TokenID   int
	From      int
	To        int
	Captured  []Capture
	Finished  bool
	BonusTurn bool
	Won       bool
}

type tokenSet = [board.TokensPerPlayer]int

// Game は1ルームの GameSession。唯一の正となる状態
type Game struct {
	roomCode string
	players  []*Player // 着席順
	tokens   map[string]*tokenSet
	turn     int // players のインデックス
	dice     int // 0 はサイコロ未確定
	phase    Phase
	movable  []int
	winner   string
	lastRoll *LastRoll
	version  uint64
	roller   Roller
}

// Option は Game の生成オプション
type Option func(*Game)

// WithRoller はサイコロを差し替えます（テストや再現用）。
func WithRoller(r Roller) Option {
	return func(g *Game) {
		g.roller = r
	}
}

// New は WAITING フェーズの新しいゲームを作ります。
func New(roomCode string, opts ...Option) *Game {
	g := &Game{
		roomCode: roomCode,
		tokens:   make(map[string]*tokenSet),
		phase:    PhaseWaiting,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.roller == nil {
		g.roller = NewRoller()
	}
	return g
}

func (g *Game) RoomCode() string { return g.roomCode }
func (g *Game) Phase() Phase     { return g.phase }
func (g *Game) Winner() string   { return g.winner }
func (g *Game) Version() uint64  { return g.version }
func (g *Game) Dice() int        { return g.dice }

// CurrentTurn は手番のプレイヤーID。開始前は空文字
func (g *Game) CurrentTurn() string {
	if g.phase == PhaseWaiting || len(g.players) == 0 {
		return ""
	}
	return g.players[g.turn].ID
}

// MovableTokens は現在動かせるトークンIDのコピー
func (g *Game) MovableTokens() []int {
	return append([]int(nil), g.movable...)
}

// Tokens はプレイヤーの4つのトークン座標を返します。
func (g *Game) Tokens(playerID string) ([board.TokensPerPlayer]int, bool) {
	t, ok := g.tokens[playerID]
	if !ok {
		return tokenSet{}, false
	}
	return *t, true
}

// Players は着席順のプレイヤー一覧のコピー
func (g *Game) Players() []Player {
	out := make([]Player, len(g.players))
	for i, p := range g.players {
		out[i] = *p
	}
	return out
}

func (g *Game) player(id string) (*Player, int) {
	for i, p := range g.players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// AddPlayer はプレイヤーを次の空き色に着席させます。
// 既に着席しているプレイヤーは接続中に戻し、同じ色を返します。
func (g *Game) AddPlayer(id string) (board.Color, error) {
	if p, _ := g.player(id); p != nil {
		p.Connected = true
		g.version++
		return p.Color, nil
	}
	if g.phase != PhaseWaiting {
		return "", violation(CodeGameStarted, "game already started")
	}
	if len(g.players) >= len(board.Colors) {
		return "", violation(CodeRoomFull, "room already has %d players", len(g.players))
	}

	color := board.Colors[len(g.players)]
	g.players = append(g.players, &Player{ID: id, Color: color, Connected: true, InRotation: true})
	g.tokens[id] = &tokenSet{board.BaseCoordinate, board.BaseCoordinate, board.BaseCoordinate, board.BaseCoordinate}
	g.version++
	return color, nil
}

// SetConnected は接続状態を切り替えます。座席とトークンはそのまま
func (g *Game) SetConnected(id string, connected bool) error {
	p, _ := g.player(id)
	if p == nil {
		return violation(CodeUnknownPlayer, "player %s is not seated", id)
	}
	if p.Connected != connected {
		p.Connected = connected
		g.version++
	}
	return nil
}

// SetInRotation はプレイヤーをローテーションから外す／戻します。
// 手番のプレイヤーを外した場合はその場で次のプレイヤーに手番を渡す
func (g *Game) SetInRotation(id string, in bool) error {
	p, idx := g.player(id)
	if p == nil {
		return violation(CodeUnknownPlayer, "player %s is not seated", id)
	}
	if p.InRotation == in {
		return nil
	}
	p.InRotation = in
	if !in && idx == g.turn && (g.phase == PhaseRoll || g.phase == PhaseMove) {
		g.advanceTurn()
	}
	g.version++
	return nil
}

// Start はゲームを開始します。最初の席のプレイヤーだけが開始でき、接続中が2人以上必要
func (g *Game) Start(by string) error {
	if g.phase != PhaseWaiting {
		return violation(CodeWrongPhase, "cannot start in phase %s", g.phase)
	}
	p, idx := g.player(by)
	if p == nil {
		return violation(CodeUnknownPlayer, "player %s is not seated", by)
	}
	if idx != 0 {
		return violation(CodeNotHost, "only the first seat can start the game")
	}
	connected := 0
	for _, pl := range g.players {
		if pl.Connected {
			connected++
		}
	}
	if connected < 2 {
		return violation(CodeNotEnoughPlayers, "need at least 2 connected players, have %d", connected)
	}

	g.phase = PhaseRoll
	g.turn = 0
	if !g.players[0].InRotation {
		g.advanceTurn()
	}
	g.version++
	return nil
}

// CanMove はトークンが出目で動けるかを返します。
// ベースのトークンは6でのみ入口(0)に出られ、ホームを越える移動はできない
func CanMove(coord, dice int) bool {
	if coord == board.BaseCoordinate {
		return dice == 6
	}
	if coord < 0 || coord >= board.HomeCoordinate {
		return false
	}
	return coord+dice <= board.HomeCoordinate
}

// RollDice は手番のプレイヤーがサイコロを振ります。
// 動かせるトークンが無い場合、出目を記録したうえで手番を次に進めます。
func (g *Game) RollDice(playerID string) (RollResult, error) {
	if g.phase != PhaseRoll {
		return RollResult{}, violation(CodeWrongPhase, "cannot roll in phase %s", g.phase)
	}
	p, idx := g.player(playerID)
	if p == nil {
		return RollResult{}, violation(CodeUnknownPlayer, "player %s is not seated", playerID)
	}
	if idx != g.turn {
		return RollResult{}, violation(CodeNotYourTurn, "it is %s's turn", g.players[g.turn].ID)
	}

	value := g.roller.Roll()
	if value < 1 || value > 6 {
		return RollResult{}, fmt.Errorf("roller returned %d", value)
	}

	g.lastRoll = &LastRoll{PlayerID: playerID, Value: value}
	movable := g.movableTokens(playerID, value)
	g.version++

	if len(movable) == 0 {
		g.advanceTurn()
		return RollResult{Value: value, TurnPassed: true}, nil
	}

	g.dice = value
	g.movable = movable
	g.phase = PhaseMove
	return RollResult{Value: value, Movable: append([]int(nil), movable...)}, nil
}

func (g *Game) movableTokens(playerID string, dice int) []int {
	var movable []int
	for id, coord := range g.tokens[playerID] {
		if CanMove(coord, dice) {
			movable = append(movable, id)
		}
	}
	return movable
}

// MoveToken は直前の出目でトークンを動かします。捕獲、勝利判定、ボーナスターンもここで処理
func (g *Game) MoveToken(playerID string, tokenID int) (MoveResult, error) {
	if g.phase != PhaseMove {
		return MoveResult{}, violation(CodeWrongPhase, "cannot move in phase %s", g.phase)
	}
	p, idx := g.player(playerID)
	if p == nil {
		return MoveResult{}, violation(CodeUnknownPlayer, "player %s is not seated", playerID)
	}
	if idx != g.turn {
		return MoveResult{}, violation(CodeNotYourTurn, "it is %s's turn", g.players[g.turn].ID)
	}
	if tokenID < 0 || tokenID >= board.TokensPerPlayer {
		return MoveResult{}, violation(CodeInvalidToken, "token id %d out of range", tokenID)
	}
	if !contains(g.movable, tokenID) {
		return MoveResult{}, violation(CodeTokenNotMovable, "token %d cannot move %d", tokenID, g.dice)
	}

	tokens := g.tokens[playerID]
	from := tokens[tokenID]
	to := from + g.dice
	if from == board.BaseCoordinate {
		to = 0
	}
	tokens[tokenID] = to

	result := MoveResult{
		TokenID:  tokenID,
		From:     from,
		To:       to,
		Finished: to == board.HomeCoordinate,
		Captured: g.capture(p, to),
	}

	if g.hasWon(playerID) {
		g.winner = playerID
		g.phase = PhaseEnd
		g.dice = 0
		g.movable = nil
		g.version++
		result.Won = true
		return result, nil
	}

	// 6、捕獲、ゴールのいずれかでボーナスターン（重複しても1回）
	result.BonusTurn = g.dice == 6 || len(result.Captured) > 0 || result.Finished
	g.dice = 0
	g.movable = nil
	g.phase = PhaseRoll
	if !result.BonusTurn {
		g.advanceTurn()
	}
	g.version++
	return result, nil
}

// 移動先が安全マスでなければ、同じ物理マスにいる他プレイヤーのトークンを全てベースに戻す
func (g *Game) capture(mover *Player, to int) []Capture {
	if board.IsSafe(mover.Color, to) {
		return nil
	}
	target, ok := board.AbsolutePosition(mover.Color, to)
	if !ok {
		return nil
	}

	var captured []Capture
	for _, other := range g.players {
		if other.ID == mover.ID {
			continue
		}
		tokens := g.tokens[other.ID]
		for id, coord := range tokens {
			if pos, ok := board.AbsolutePosition(other.Color, coord); ok && pos == target {
				captured = append(captured, Capture{PlayerID: other.ID, TokenID: id, From: coord})
				tokens[id] = board.BaseCoordinate
			}
		}
	}
	return captured
}

func (g *Game) hasWon(playerID string) bool {
	for _, coord := range g.tokens[playerID] {
		if coord != board.HomeCoordinate {
			return false
		}
	}
	return true
}

// 着席順で次のローテーション中のプレイヤーへ。誰もいなければ手番は動かない
func (g *Game) advanceTurn() {
	n := len(g.players)
	for i := 1; i <= n; i++ {
		next := (g.turn + i) % n
		if g.players[next].InRotation {
			g.turn = next
			break
		}
	}
	g.phase = PhaseRoll
	g.dice = 0
	g.movable = nil
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
