package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// Roller はサイコロ。[1,6] の一様乱数を返す
type Roller interface {
	Roll() int
}

type randRoller struct {
	rng *rand.Rand
}

func (r *randRoller) Roll() int {
	return r.rng.Intn(6) + 1
}

// NewSeededRoller は同じシードなら同じ出目の列を返すサイコロを作ります。
func NewSeededRoller(seed int64) Roller {
	return &randRoller{rng: rand.New(rand.NewSource(seed))}
}

// NewRoller は crypto/rand のシードでサイコロを作ります。
// シードの読み取りに失敗した場合は時刻を使う
func NewRoller() Roller {
	return NewSeededRoller(newSeed())
}

func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
