package registry

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
)

// 見間違えやすい 0/O, 1/I を除いたアルファベット
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const RoomCodeLength = 6

// GenerateRoomCode はロビー作成用の6文字のルームコードを生成します。
func GenerateRoomCode() (string, error) {
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := crand.Int(crand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
