// Package board はルードの盤面ジオメトリ（各色のベース、経路、安全マス）を定義します。
// 振る舞いを持たない静的データのみを扱います。
package board

// Color はプレイヤーの色。ルーム内で1プレイヤーにつき1色
type Color string

const (
	Red    Color = "RED"
	Green  Color = "GREEN"
	Yellow Color = "YELLOW"
	Blue   Color = "BLUE"
)

// Colors は着席順。ターンのローテーションもこの順番
var Colors = [4]Color{Red, Green, Yellow, Blue}

const (
	TokensPerPlayer = 4

	CircuitLength     = 52 // 全色で共有する周回路のマス数
	CircuitSteps      = 51 // 各色が周回路上で進むマス数 (経路インデックス 0..50)
	HomeStretchLength = 5  // 各色専用のホームストレッチ (51..55)
	EntryOffsetStep   = 13 // 色ごとの入口オフセット

	// PathLength は経路座標の N。N-1 がゴール（ホーム）
	PathLength = CircuitSteps + HomeStretchLength + 1

	BaseCoordinate = -1
	HomeCoordinate = PathLength - 1
)

// 周回路上の安全マス（各色の入口マスと星マス）。絶対位置で管理
var safeCircuitCells = map[int]bool{
	0: true, 8: true, 13: true, 21: true,
	26: true, 34: true, 39: true, 47: true,
}

// Seat は色の着席インデックスを返します。未知の色は -1
func (c Color) Seat() int {
	for i, color := range Colors {
		if color == c {
			return i
		}
	}
	return -1
}

// Valid は4色のいずれかであるかを返します。
func (c Color) Valid() bool {
	return c.Seat() >= 0
}

// EntryOffset は色が周回路に入る絶対位置を返します。
func EntryOffset(c Color) int {
	return c.Seat() * EntryOffsetStep
}

// IsHomeStretch は経路インデックスがその色専用の区間（ホームストレッチかホーム）にあるかを返します。
func IsHomeStretch(index int) bool {
	return index >= CircuitSteps
}

// AbsolutePosition は周回路上のマスであれば共有の絶対位置を返します。
// ベース、ホームストレッチ、ホームは他色と重ならないため ok=false
func AbsolutePosition(c Color, index int) (pos int, ok bool) {
	if !c.Valid() || index < 0 || IsHomeStretch(index) {
		return 0, false
	}
	return (EntryOffset(c) + index) % CircuitLength, true
}

// IsSafe はマスが捕獲不可かどうかを返します。
func IsSafe(c Color, index int) bool {
	pos, ok := AbsolutePosition(c, index)
	if !ok {
		return true
	}
	return safeCircuitCells[pos]
}

// Cell は盤面上の1マス。経路マスは (Color, Index)、ベースマスは (Color, BaseSlot) で識別
type Cell struct {
	Color    Color `json:"color"`
	Index    int   `json:"index"`
	BaseSlot int   `json:"baseSlot"`
	Safe     bool  `json:"isSafe"`
}

// IsBase はベースマスかどうか
func (c Cell) IsBase() bool {
	return c.Index == BaseCoordinate
}

func PathCell(c Color, index int) Cell {
	return Cell{Color: c, Index: index, BaseSlot: -1, Safe: IsSafe(c, index)}
}

func BaseCell(c Color, slot int) Cell {
	return Cell{Color: c, Index: BaseCoordinate, BaseSlot: slot, Safe: true}
}

// Path は色の経路マスを順番に返します（長さ PathLength、最後がホーム）。
func Path(c Color) []Cell {
	cells := make([]Cell, PathLength)
	for i := range cells {
		cells[i] = PathCell(c, i)
	}
	return cells
}

// Bases は色のベースマス4つを返します。
func Bases(c Color) []Cell {
	cells := make([]Cell, TokensPerPlayer)
	for i := range cells {
		cells[i] = BaseCell(c, i)
	}
	return cells
}
