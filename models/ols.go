package models

import (
	"errors"
	"fmt"

	"github.com/aouyang1/go-salinity/floatsunrolled"
	mat_ "github.com/aouyang1/go-salinity/mat"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const DefaultRCond = 1e-10

var ErrNegativeRCond = errors.New("negative rcond")

type OLSOptions struct {
	// FitIntercept adds a constant 1.0 feature as the first column if set to true
	FitIntercept bool `json:"fit_intercept"`

	// RCond drops singular values below RCond times the largest one. Collinear columns such as
	// a complete set of one-hot indicators next to an intercept then resolve to the minimum
	// norm solution.
	RCond float64 `json:"rcond"`
}

func NewDefaultOLSOptions() *OLSOptions {
	return &OLSOptions{
		FitIntercept: true,
		RCond:        DefaultRCond,
	}
}

// Validate runs basic validation on OLS options
func (o *OLSOptions) Validate() (*OLSOptions, error) {
	if o == nil {
		return NewDefaultOLSOptions(), nil
	}
	if o.RCond < 0 {
		return nil, ErrNegativeRCond
	}
	opt := *o
	if opt.RCond == 0 {
		opt.RCond = DefaultRCond
	}
	return &opt, nil
}

// OLSRegression computes ordinary least squares through a thin singular value decomposition
type OLSRegression struct {
	opt       *OLSOptions
	coef      []float64
	intercept float64
}

func NewOLSRegression(opt *OLSOptions) (*OLSRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &OLSRegression{
		opt: opt,
	}, nil
}

// OLSModel is the serializable state of a fitted OLS regression
type OLSModel struct {
	Options   *OLSOptions `json:"options"`
	Intercept float64     `json:"intercept"`
	Coef      []float64   `json:"coef"`
}

// NewOLSRegressionFromModel restores a fitted regression
func NewOLSRegressionFromModel(model OLSModel) (*OLSRegression, error) {
	o, err := NewOLSRegression(model.Options)
	if err != nil {
		return nil, err
	}
	o.intercept = model.Intercept
	o.coef = append([]float64(nil), model.Coef...)
	return o, nil
}

// Model returns the serializable state of the regression
func (o *OLSRegression) Model() OLSModel {
	opt := *o.opt
	return OLSModel{
		Options:   &opt,
		Intercept: o.intercept,
		Coef:      o.Coef(),
	}
}

func (o *OLSRegression) Fit(x, y mat.Matrix) error {
	if o.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, _ := x.Dims()
	if m == 0 {
		return ErrEmptyTrainingSet
	}

	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	if o.opt.FitIntercept {
		x = mat_.PrependOnes(x)
	}
	_, n := x.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return ErrSVDFailed
	}
	rank := svd.Rank(o.opt.RCond)

	c := mat.NewVecDense(n, nil)
	svd.SolveVecTo(c, mat.NewVecDense(m, mat_.Vector(y)), rank)

	coef := c.RawVector().Data
	if o.opt.FitIntercept {
		o.intercept = coef[0]
		o.coef = append([]float64(nil), coef[1:]...)
		return nil
	}
	o.intercept = 0
	o.coef = append([]float64(nil), coef...)
	return nil
}

func (o *OLSRegression) Predict(x mat.Matrix) ([]float64, error) {
	if o.opt == nil {
		return nil, ErrNoOptions
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	if o.coef == nil {
		return nil, ErrNotFitted
	}

	m, n := x.Dims()
	if n != len(o.coef) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, len(o.coef), ErrFeatureLenMismatch)
	}

	res := make([]float64, m)
	row := make([]float64, n)
	for i := 0; i < m; i++ {
		mat.Row(row, i, x)
		res[i] = o.intercept + floatsunrolled.Dot(o.coef, row)
	}
	return res, nil
}

// Score computes the coefficient of determination of the prediction
func (o *OLSRegression) Score(x, y mat.Matrix) (float64, error) {
	return score(o, x, y)
}

func (o *OLSRegression) Intercept() float64 {
	return o.intercept
}

func (o *OLSRegression) Coef() []float64 {
	c := make([]float64, len(o.coef))
	copy(c, o.coef)
	return c
}

func score(model Model, x, y mat.Matrix) (float64, error) {
	if x == nil {
		return 0.0, ErrNoDesignMatrix
	}
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}

	m, _ := x.Dims()
	ym, _ := y.Dims()
	if m != ym {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}

	res, err := model.Predict(x)
	if err != nil {
		return 0.0, err
	}
	return stat.RSquaredFrom(res, mat_.Vector(y), nil), nil
}
