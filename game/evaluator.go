package game

// emptyTile marks a cell that has not been revealed. Real tiles are 1-9.
const emptyTile = 0

// Evaluation is the outcome of checking a revealed grid against a win rule
type Evaluation struct {
	IsValid      bool `json:"isValid"`
	HasWon       bool `json:"hasWon"`
	WinningValue *int `json:"winningValue"`
}

// Evaluate decides whether the revealed values of a gridSizeX by gridSizeY
// ticket contain matchingTilesToWin equal values within one row, one column
// or one of the two main diagonals.
//
// Groups are scanned rows first, then columns, then diagonals, and every group
// is scanned; when several groups win, the last one scanned sets WinningValue.
// Cell ids outside the grid or not in canonical form are ignored. A grid is
// valid only when every distinct position is revealed.
func Evaluate(revealed map[string]int, matchingTilesToWin, gridSizeX, gridSizeY int) Evaluation {
	if matchingTilesToWin <= 0 {
		matchingTilesToWin = DefaultMatchingTilesToWin
	}
	if gridSizeX <= 0 || gridSizeY <= 0 {
		return Evaluation{}
	}

	grid := make([][]int, gridSizeY)
	for r := range grid {
		grid[r] = make([]int, gridSizeX)
	}

	seen := make(map[[2]int]bool, len(revealed))
	for id, value := range revealed {
		row, col, err := ParseCellID(id)
		if err != nil || row < 0 || row >= gridSizeY || col < 0 || col >= gridSizeX {
			continue
		}
		grid[row][col] = value
		seen[[2]int{row, col}] = true
	}
	filled := len(seen)

	result := Evaluation{IsValid: filled == gridSizeX*gridSizeY}

	for _, group := range tileGroups(gridSizeX, gridSizeY) {
		values := make([]int, len(group))
		for i, pos := range group {
			values[i] = grid[pos[0]][pos[1]]
		}
		if v, ok := winningValue(values, matchingTilesToWin); ok {
			result.HasWon = true
			result.WinningValue = &v
		}
	}

	return result
}

// winningValue returns the last value in group order whose count reaches need.
func winningValue(values []int, need int) (int, bool) {
	counts := make(map[int]int, len(values))
	winner, found := 0, false
	for _, v := range values {
		if v <= emptyTile {
			continue
		}
		counts[v]++
		if counts[v] >= need {
			winner, found = v, true
		}
	}
	return winner, found
}

// tileGroups lists (row, col) positions for every row, every column, then the
// main and anti diagonals. On non-square grids the diagonals start at the top
// corners and run for min(gridSizeX, gridSizeY) cells.
func tileGroups(gridSizeX, gridSizeY int) [][][2]int {
	groups := make([][][2]int, 0, gridSizeX+gridSizeY+2)

	for r := 0; r < gridSizeY; r++ {
		row := make([][2]int, gridSizeX)
		for c := 0; c < gridSizeX; c++ {
			row[c] = [2]int{r, c}
		}
		groups = append(groups, row)
	}

	for c := 0; c < gridSizeX; c++ {
		col := make([][2]int, gridSizeY)
		for r := 0; r < gridSizeY; r++ {
			col[r] = [2]int{r, c}
		}
		groups = append(groups, col)
	}

	n := min(gridSizeX, gridSizeY)
	diag := make([][2]int, n)
	anti := make([][2]int, n)
	for i := 0; i < n; i++ {
		diag[i] = [2]int{i, i}
		anti[i] = [2]int{i, gridSizeX - 1 - i}
	}
	return append(groups, diag, anti)
}
