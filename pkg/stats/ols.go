package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularDesign 设计矩阵不满秩
var ErrSingularDesign = errors.New("singular design matrix")

// OLSResult 普通最小二乘回归结果
type OLSResult struct {
	Coef   []float64 // 回归系数，顺序与设计矩阵列一致
	StdErr []float64 // 系数标准误
	Resid  []float64 // 残差
	SSR    float64   // 残差平方和
	NObs   int
	K      int
}

// TStat 返回第 i 个系数的 t 统计量
func (r *OLSResult) TStat(i int) float64 {
	if r.StdErr[i] == 0 {
		return math.NaN()
	}
	return r.Coef[i] / r.StdErr[i]
}

// AIC 高斯似然下的赤池信息准则
func (r *OLSResult) AIC() float64 {
	n := float64(r.NObs)
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(r.SSR/n) + 1)
	return -2*llf + 2*float64(r.K)
}

// OLS 求解 y = Xβ + ε
// x 按行存储观测值，每行 k 个回归变量
func OLS(y []float64, x [][]float64) (*OLSResult, error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, fmt.Errorf("ols: %d observations but %d design rows", n, len(x))
	}
	k := len(x[0])
	if n <= k {
		return nil, fmt.Errorf("ols: %d observations for %d regressors", n, k)
	}

	design := mat.NewDense(n, k, nil)
	for i, row := range x {
		if len(row) != k {
			return nil, fmt.Errorf("ols: row %d has %d columns, want %d", i, len(row), k)
		}
		design.SetRow(i, row)
	}
	target := mat.NewVecDense(n, append([]float64(nil), y...))

	var xtx mat.SymDense
	xtx.SymOuterK(1, design.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, ErrSingularDesign
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), target)

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("ols: %w", ErrSingularDesign)
	}

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("ols: %w", ErrSingularDesign)
	}

	var fitted mat.VecDense
	fitted.MulVec(design, &beta)

	resid := make([]float64, n)
	var ssr float64
	for i := 0; i < n; i++ {
		resid[i] = y[i] - fitted.AtVec(i)
		ssr += resid[i] * resid[i]
	}

	sigma2 := ssr / float64(n-k)
	coef := make([]float64, k)
	stdErr := make([]float64, k)
	for j := 0; j < k; j++ {
		coef[j] = beta.AtVec(j)
		stdErr[j] = math.Sqrt(sigma2 * inv.At(j, j))
	}

	return &OLSResult{
		Coef:   coef,
		StdErr: stdErr,
		Resid:  resid,
		SSR:    ssr,
		NObs:   n,
		K:      k,
	}, nil
}
