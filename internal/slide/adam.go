package slide

import "math"

// Adam hyperparameters, shared by every Param in the network.
const (
	adamBeta1   float32 = 0.9
	adamBeta2   float32 = 0.999
	adamEpsilon float32 = 1e-8
)

// adamState holds the two exponential moving averages of one scalar
// parameter's gradient. It never appears on its own outside Param.
type adamState struct {
	avgMom float32
	avgVel float32
}

// gradient folds the accumulated error g into the moving averages and
// returns the Adam-adjusted step direction avg_mom / (sqrt(avg_vel) + eps).
func (a *adamState) gradient(g float32) float32 {
	a.avgMom = adamBeta1*a.avgMom + (1-adamBeta1)*g
	a.avgVel = adamBeta2*a.avgVel + (1-adamBeta2)*g*g
	return a.avgMom / float32(math.Sqrt(float64(a.avgVel))+float64(adamEpsilon))
}
