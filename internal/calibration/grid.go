package calibration

// Target is a calibration point in normalized screen coordinates.
type Target struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// gridSteps are the normalized positions used along each axis.
var gridSteps = [3]float64{0.1, 0.5, 0.9}

// GridSize is the number of targets in a session.
const GridSize = len(gridSteps) * len(gridSteps)

// Grid returns the 3x3 target grid in row-major order.
func Grid() [GridSize]Target {
	var g [GridSize]Target
	for row, y := range gridSteps {
		for col, x := range gridSteps {
			g[row*len(gridSteps)+col] = Target{X: x, Y: y}
		}
	}
	return g
}
