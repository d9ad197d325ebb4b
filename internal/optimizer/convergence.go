package optimizer

import (
	"math"

	"github.com/kinfit/kinfit-core/pkg/utils"
)

// converged reports whether the population fitness has collapsed: standard
// deviation within tol of the mean magnitude. Penalty-dominated populations
// (infinite or huge spread) never converge under this test.
func converged(fitness []float64, tol float64) bool {
	if len(fitness) < 2 {
		return true
	}
	mean := utils.Mean(fitness)
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return false
	}
	sd := utils.StdDev(fitness)
	return sd <= tol*math.Abs(mean)
}
