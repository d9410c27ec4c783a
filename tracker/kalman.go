package tracker

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/mat"
)

const (
	// stdWeightPosition and stdWeightVelocity scale the process and
	// measurement noise relative to the box height
	stdWeightPosition = 1.0 / 20
	stdWeightVelocity = 1.0 / 160
)

// kalmanFilter is a constant velocity Kalman filter over the 8 dimensional
// state (cx, cy, a, h, vcx, vcy, va, vh) observing (cx, cy, a, h)
type kalmanFilter struct {
	mean *mat.VecDense
	cov  *mat.Dense
	// motion is the 8x8 state transition matrix
	motion *mat.Dense
	// observe is the 4x8 observation matrix
	observe *mat.Dense
}

// newKalmanFilter initializes the filter state from a first measurement
func newKalmanFilter(measurement [4]float64) *kalmanFilter {

	motion := mat.NewDense(8, 8, nil)

	for i := 0; i < 8; i++ {
		motion.Set(i, i, 1)
	}

	for i := 0; i < 4; i++ {
		motion.Set(i, 4+i, 1)
	}

	observe := mat.NewDense(4, 8, nil)

	for i := 0; i < 4; i++ {
		observe.Set(i, i, 1)
	}

	kf := &kalmanFilter{
		motion:  motion,
		observe: observe,
	}

	kf.initiate(measurement)
	return kf
}

// initiate resets the state to the measurement with zero velocity
func (kf *kalmanFilter) initiate(z [4]float64) {

	kf.mean = mat.NewVecDense(8, []float64{z[0], z[1], z[2], z[3], 0, 0, 0, 0})

	h := z[3]
	std := []float64{
		2 * stdWeightPosition * h,
		2 * stdWeightPosition * h,
		1e-2,
		2 * stdWeightPosition * h,
		10 * stdWeightVelocity * h,
		10 * stdWeightVelocity * h,
		1e-5,
		10 * stdWeightVelocity * h,
	}

	kf.cov = diagSquared(std)
}

// predict advances the state one frame
func (kf *kalmanFilter) predict() {

	h := kf.mean.AtVec(3)
	noise := diagSquared([]float64{
		stdWeightPosition * h,
		stdWeightPosition * h,
		1e-2,
		stdWeightPosition * h,
		stdWeightVelocity * h,
		stdWeightVelocity * h,
		1e-5,
		stdWeightVelocity * h,
	})

	var mean mat.VecDense
	mean.MulVec(kf.motion, kf.mean)
	kf.mean = &mean

	var fp, cov mat.Dense
	fp.Mul(kf.motion, kf.cov)
	cov.Mul(&fp, kf.motion.T())
	cov.Add(&cov, noise)
	kf.cov = &cov
}

// project returns the state distribution in measurement space
func (kf *kalmanFilter) project() (*mat.VecDense, *mat.SymDense) {

	h := kf.mean.AtVec(3)
	std := []float64{
		stdWeightPosition * h,
		stdWeightPosition * h,
		1e-1,
		stdWeightPosition * h,
	}

	var mean mat.VecDense
	mean.MulVec(kf.observe, kf.mean)

	var hp, hph mat.Dense
	hp.Mul(kf.observe, kf.cov)
	hph.Mul(&hp, kf.observe.T())

	cov := mat.NewSymDense(4, nil)

	for i := 0; i < 4; i++ {
		for j := i; j < 4; j++ {
			v := hph.At(i, j)

			if i == j {
				v += std[i] * std[i]
			}

			cov.SetSym(i, j, v)
		}
	}

	return &mean, cov
}

// update corrects the state with a measurement
func (kf *kalmanFilter) update(z [4]float64) error {

	projMean, projCov := kf.project()

	var chol mat.Cholesky

	if ok := chol.Factorize(projCov); !ok {
		return errors.New("projected covariance is not positive definite")
	}

	// gain transposed, solves S * K^T = (P * H^T)^T
	var pht, gainT mat.Dense
	pht.Mul(kf.cov, kf.observe.T())

	if err := chol.SolveTo(&gainT, pht.T()); err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	innovation := mat.NewVecDense(4, z[:])
	innovation.SubVec(innovation, projMean)

	var correction mat.VecDense
	correction.MulVec(gainT.T(), innovation)
	kf.mean.AddVec(kf.mean, &correction)

	// P = P - K * S * K^T
	var ks, ksk, cov mat.Dense
	ks.Mul(gainT.T(), projCov)
	ksk.Mul(&ks, &gainT)
	cov.Sub(kf.cov, &ksk)
	kf.cov = &cov

	return nil
}

// box returns the current state estimate as a bounding box
func (kf *kalmanFilter) box() Box {
	return boxFromXyah(kf.mean.AtVec(0), kf.mean.AtVec(1),
		kf.mean.AtVec(2), kf.mean.AtVec(3))
}

// freezeHeightVelocity zeroes the height velocity of tracks that are not
// currently matched so lost boxes do not shrink or grow unbounded
func (kf *kalmanFilter) freezeHeightVelocity() {
	kf.mean.SetVec(7, 0)
}

// diagSquared returns a diagonal matrix of the squared values
func diagSquared(std []float64) *mat.Dense {

	n := len(std)
	d := mat.NewDense(n, n, nil)

	for i, v := range std {
		d.Set(i, i, v*v)
	}

	return d
}
