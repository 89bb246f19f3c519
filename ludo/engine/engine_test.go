package engine

import (
	"errors"
	"math/rand"
	"testing"

	"ludoserver/ludo/board"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRoller struct {
	values []int
	next   int
}

func (r *scriptedRoller) Roll() int {
	v := r.values[r.next%len(r.values)]
	r.next++
	return v
}

func rolls(values ...int) *scriptedRoller {
	return &scriptedRoller{values: values}
}

func newStartedGame(t *testing.T, roller Roller, ids ...string) *Game {
	t.Helper()
	g := New("ABC123", WithRoller(roller))
	for _, id := range ids {
		_, err := g.AddPlayer(id)
		require.NoError(t, err)
	}
	require.NoError(t, g.Start(ids[0]))
	return g
}

func TestFreshSessionRollSixThenEnterToken(t *testing.T) {
	g := newStartedGame(t, rolls(6), "a", "b")

	res, err := g.RollDice("a")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Value)
	assert.Equal(t, []int{0, 1, 2, 3}, res.Movable)
	assert.Equal(t, PhaseMove, g.Phase())

	mv, err := g.MoveToken("a", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, mv.To)
	assert.True(t, mv.BonusTurn)

	tokens, _ := g.Tokens("a")
	assert.Equal(t, 0, tokens[0])
	assert.Equal(t, PhaseRoll, g.Phase())
	assert.Equal(t, "a", g.CurrentTurn())
	assert.Zero(t, g.Dice())
	assert.Empty(t, g.MovableTokens())
}

func TestFinishingTokenGrantsBonusTurn(t *testing.T) {
	g := newStartedGame(t, rolls(1), "a", "b")
	g.tokens["a"][0] = board.HomeCoordinate - 1

	res, err := g.RollDice("a")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Movable)

	mv, err := g.MoveToken("a", 0)
	require.NoError(t, err)
	assert.True(t, mv.Finished)
	assert.True(t, mv.BonusTurn)
	assert.False(t, mv.Won)
	assert.Equal(t, PhaseRoll, g.Phase())
	assert.Equal(t, "a", g.CurrentTurn())
}

func TestCaptureOnUnsafeCell(t *testing.T) {
	g := newStartedGame(t, rolls(3), "a", "b")
	g.tokens["a"][0] = 2
	// 緑の44マス目は絶対位置5 (= 赤の5マス目)
	g.tokens["b"][1] = 44

	_, err := g.RollDice("a")
	require.NoError(t, err)
	mv, err := g.MoveToken("a", 0)
	require.NoError(t, err)

	require.Len(t, mv.Captured, 1)
	assert.Equal(t, Capture{PlayerID: "b", TokenID: 1, From: 44}, mv.Captured[0])
	tokens, _ := g.Tokens("b")
	assert.Equal(t, board.BaseCoordinate, tokens[1])
	assert.True(t, mv.BonusTurn)
	assert.Equal(t, "a", g.CurrentTurn())
}

func TestCaptureSendsEveryOpponentTokenOnTheCellHome(t *testing.T) {
	g := newStartedGame(t, rolls(3), "a", "b", "c")
	g.tokens["a"][0] = 2
	g.tokens["b"][0] = 44
	g.tokens["b"][2] = 44
	// 黄の31マス目も絶対位置5
	g.tokens["c"][3] = 31

	_, err := g.RollDice("a")
	require.NoError(t, err)
	mv, err := g.MoveToken("a", 0)
	require.NoError(t, err)

	assert.Len(t, mv.Captured, 3)
	b, _ := g.Tokens("b")
	c, _ := g.Tokens("c")
	assert.Equal(t, [4]int{-1, -1, -1, -1}, b)
	assert.Equal(t, [4]int{-1, -1, -1, -1}, c)
}

func TestNoCaptureOnSafeCell(t *testing.T) {
	g := newStartedGame(t, rolls(3), "a", "b")
	g.tokens["a"][0] = 5
	// 緑の47マス目は絶対位置8 (星マス)
	g.tokens["b"][0] = 47
	require.True(t, board.IsSafe(board.Red, 8))

	_, err := g.RollDice("a")
	require.NoError(t, err)
	mv, err := g.MoveToken("a", 0)
	require.NoError(t, err)

	assert.Empty(t, mv.Captured)
	tokens, _ := g.Tokens("b")
	assert.Equal(t, 47, tokens[0])
	assert.False(t, mv.BonusTurn)
	assert.Equal(t, "b", g.CurrentTurn())
}

func TestNoCaptureInHomeStretch(t *testing.T) {
	g := newStartedGame(t, rolls(2), "a", "b")
	g.tokens["a"][0] = 50
	g.tokens["b"][0] = 52

	_, err := g.RollDice("a")
	require.NoError(t, err)
	mv, err := g.MoveToken("a", 0)
	require.NoError(t, err)
	assert.Equal(t, 52, mv.To)
	assert.Empty(t, mv.Captured)
}

func TestWinEndsGameImmediately(t *testing.T) {
	g := newStartedGame(t, rolls(1), "a", "b")
	home := board.HomeCoordinate
	*g.tokens["a"] = [4]int{home, home, home, home - 1}

	_, err := g.RollDice("a")
	require.NoError(t, err)
	mv, err := g.MoveToken("a", 3)
	require.NoError(t, err)

	assert.True(t, mv.Won)
	assert.Equal(t, PhaseEnd, g.Phase())
	assert.Equal(t, "a", g.Winner())
	assert.Zero(t, g.Dice())

	_, err = g.RollDice("a")
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, err = g.RollDice("b")
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.Equal(t, "a", g.Winner())
}

func TestNoMovableTokenAdvancesTurnAndRecordsRoll(t *testing.T) {
	g := newStartedGame(t, rolls(3), "a", "b")

	res, err := g.RollDice("a")
	require.NoError(t, err)
	assert.True(t, res.TurnPassed)
	assert.Empty(t, res.Movable)
	assert.Equal(t, "b", g.CurrentTurn())
	assert.Equal(t, PhaseRoll, g.Phase())

	snap := g.Snapshot()
	assert.Nil(t, snap.Dice)
	require.NotNil(t, snap.LastRoll)
	assert.Equal(t, LastRoll{PlayerID: "a", Value: 3}, *snap.LastRoll)
}

func TestSixWithoutMovableTokenStillPassesTurn(t *testing.T) {
	g := newStartedGame(t, rolls(6), "a", "b")
	home := board.HomeCoordinate
	*g.tokens["a"] = [4]int{home, home, home, home - 2}

	res, err := g.RollDice("a")
	require.NoError(t, err)
	assert.True(t, res.TurnPassed)
	assert.Equal(t, "b", g.CurrentTurn())
}

func TestIllegalCallsDoNotMutate(t *testing.T) {
	g := newStartedGame(t, rolls(4), "a", "b")
	g.tokens["a"][1] = 10

	before := g.Snapshot()
	_, err := g.RollDice("b")
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = g.MoveToken("a", 1)
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, err = g.RollDice("ghost")
	assert.ErrorIs(t, err, ErrUnknownPlayer)
	assert.Equal(t, before, g.Snapshot())

	_, err = g.RollDice("a")
	require.NoError(t, err)
	before = g.Snapshot()

	_, err = g.MoveToken("a", 0)
	assert.ErrorIs(t, err, ErrTokenNotMovable)
	_, err = g.MoveToken("a", 7)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = g.MoveToken("b", 1)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = g.RollDice("a")
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.Equal(t, before, g.Snapshot())

	assert.True(t, IsRuleViolation(err))
	assert.False(t, IsRuleViolation(errors.New("boom")))
}

func TestRotationWrapsInSeatingOrder(t *testing.T) {
	g := newStartedGame(t, rolls(2), "a", "b", "c")

	order := []string{}
	for i := 0; i < 4; i++ {
		order = append(order, g.CurrentTurn())
		_, err := g.RollDice(g.CurrentTurn())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, order)
}

func TestDisconnectedPlayerKeepsTurnUnlessRemovedFromRotation(t *testing.T) {
	g := newStartedGame(t, rolls(2), "a", "b", "c")
	require.NoError(t, g.SetConnected("b", false))

	_, err := g.RollDice("a")
	require.NoError(t, err)
	assert.Equal(t, "b", g.CurrentTurn(), "disconnected player is not skipped by default")

	require.NoError(t, g.SetInRotation("b", false))
	assert.Equal(t, "c", g.CurrentTurn(), "removing the current player hands the turn on")

	_, err = g.RollDice("c")
	require.NoError(t, err)
	assert.Equal(t, "a", g.CurrentTurn())
	_, err = g.RollDice("a")
	require.NoError(t, err)
	assert.Equal(t, "c", g.CurrentTurn())

	require.NoError(t, g.SetInRotation("b", true))
	_, err = g.RollDice("c")
	require.NoError(t, err)
	_, err = g.RollDice("a")
	require.NoError(t, err)
	assert.Equal(t, "b", g.CurrentTurn())
}

func TestSeatingRules(t *testing.T) {
	g := New("ROOM1")
	for i, id := range []string{"a", "b", "c", "d"} {
		color, err := g.AddPlayer(id)
		require.NoError(t, err)
		assert.Equal(t, board.Colors[i], color)
	}
	_, err := g.AddPlayer("e")
	assert.ErrorIs(t, err, ErrRoomFull)

	require.NoError(t, g.SetConnected("c", false))
	color, err := g.AddPlayer("c")
	require.NoError(t, err)
	assert.Equal(t, board.Yellow, color)
	assert.True(t, g.Players()[2].Connected)

	require.NoError(t, g.Start("a"))
	_, err = g.AddPlayer("late")
	assert.ErrorIs(t, err, ErrGameStarted)
	color, err = g.AddPlayer("b")
	require.NoError(t, err, "seated players may rejoin after start")
	assert.Equal(t, board.Green, color)
}

func TestStartRules(t *testing.T) {
	g := New("ROOM1")
	_, _ = g.AddPlayer("a")
	assert.ErrorIs(t, g.Start("a"), ErrNotEnough)
	_, err := g.RollDice("a")
	assert.ErrorIs(t, err, ErrWrongPhase, "no dice accepted while waiting")

	_, _ = g.AddPlayer("b")
	assert.ErrorIs(t, g.Start("b"), ErrNotHost)
	assert.ErrorIs(t, g.Start("x"), ErrUnknownPlayer)

	require.NoError(t, g.SetConnected("b", false))
	assert.ErrorIs(t, g.Start("a"), ErrNotEnough)
	require.NoError(t, g.SetConnected("b", true))

	require.NoError(t, g.Start("a"))
	assert.Equal(t, PhaseRoll, g.Phase())
	assert.Equal(t, "a", g.CurrentTurn())
	assert.ErrorIs(t, g.Start("a"), ErrWrongPhase)
}

func TestCanMove(t *testing.T) {
	home := board.HomeCoordinate
	tcs := []struct {
		coord, dice int
		want        bool
	}{
		{-1, 6, true},
		{-1, 5, false},
		{0, 6, true},
		{home - 1, 1, true},
		{home - 1, 2, false},
		{home - 6, 6, true},
		{home, 1, false},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.want, CanMove(tc.coord, tc.dice), "coord %d dice %d", tc.coord, tc.dice)
	}
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	g := newStartedGame(t, rolls(6), "a", "b")
	_, err := g.RollDice("a")
	require.NoError(t, err)

	snap := g.Snapshot()
	require.NotNil(t, snap.Dice)
	assert.Equal(t, 6, *snap.Dice)
	snap.Tokens["a"][0] = 30
	snap.MovableTokens[0] = 3

	tokens, _ := g.Tokens("a")
	assert.Equal(t, board.BaseCoordinate, tokens[0])
	assert.Equal(t, []int{0, 1, 2, 3}, g.MovableTokens())
	assert.Equal(t, snap, snap.Clone())
}

// ランダムな対局を最後まで進め、不変条件が常に成り立つことを確認する
func TestRandomPlayKeepsBoardConsistent(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g := newStartedGame(t, NewSeededRoller(seed), "a", "b", "c", "d")
		pick := rand.New(rand.NewSource(seed))
		prev := g.Snapshot().Tokens
		winners := 0

		for step := 0; step < 20000 && g.Phase() != PhaseEnd; step++ {
			current := g.CurrentTurn()
			res, err := g.RollDice(current)
			require.NoError(t, err)
			if res.TurnPassed {
				continue
			}
			before, _ := g.Tokens(current)
			tokenID := res.Movable[pick.Intn(len(res.Movable))]
			mv, err := g.MoveToken(current, tokenID)
			require.NoError(t, err)

			if before[tokenID] == board.BaseCoordinate {
				assert.Equal(t, 6, res.Value, "leaving base requires a six")
				assert.Equal(t, 0, mv.To)
			} else {
				assert.Equal(t, before[tokenID]+res.Value, mv.To)
			}

			if g.Phase() == PhaseRoll {
				assert.Zero(t, g.Dice())
				assert.Empty(t, g.MovableTokens())
			}
			if mv.Won {
				winners++
			}
			wantBonus := res.Value == 6 || len(mv.Captured) > 0 || mv.Finished
			if !mv.Won {
				assert.Equal(t, wantBonus, mv.BonusTurn)
				if mv.BonusTurn {
					assert.Equal(t, current, g.CurrentTurn())
				} else {
					assert.NotEqual(t, current, g.CurrentTurn())
				}
			}
			if len(mv.Captured) > 0 {
				assert.False(t, board.IsSafe(board.Colors[indexOf(g, current)], mv.To))
			}

			snap := g.Snapshot()
			captured := map[string]map[int]bool{}
			for _, c := range mv.Captured {
				if captured[c.PlayerID] == nil {
					captured[c.PlayerID] = map[int]bool{}
				}
				captured[c.PlayerID][c.TokenID] = true
			}
			for id, coords := range snap.Tokens {
				for i, coord := range coords {
					require.GreaterOrEqual(t, coord, board.BaseCoordinate)
					require.LessOrEqual(t, coord, board.HomeCoordinate)
					if coord < prev[id][i] {
						assert.True(t, captured[id][i], "only a capture moves a token backwards")
						assert.Equal(t, board.BaseCoordinate, coord)
					}
				}
			}
			prev = snap.Tokens
		}

		require.Equal(t, PhaseEnd, g.Phase(), "seed %d did not finish", seed)
		assert.Equal(t, 1, winners)
		final, _ := g.Tokens(g.Winner())
		for _, coord := range final {
			assert.Equal(t, board.HomeCoordinate, coord)
		}
	}
}

func indexOf(g *Game, id string) int {
	_, idx := g.player(id)
	return idx
}
