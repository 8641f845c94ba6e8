// Package signal turns a z-score sequence into discrete pair positions
package signal

import (
	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
)

// Position 持仓方向，数值即 spread 敞口符号
type Position int

const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

func (p Position) String() string {
	switch p {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Float 返回用于收益计算的数值
func (p Position) Float() float64 {
	return float64(p)
}

// FromFloat 从持久化的数值恢复持仓
func FromFloat(v float64) (Position, error) {
	switch v {
	case 1:
		return Long, nil
	case -1:
		return Short, nil
	case 0:
		return Flat, nil
	default:
		return Flat, errs.Configf("invalid position value %v", v)
	}
}

// Policy 信号生成策略
type Policy string

const (
	// PolicyStateful 带记忆的滞回状态机，多空之间必须经过 FLAT
	PolicyStateful Policy = "stateful"
	// PolicyVectorized 只看当日 z-score，可直接多空翻转
	PolicyVectorized Policy = "vectorized"
)

// ParsePolicy 解析配置中的策略名
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case PolicyStateful, PolicyVectorized:
		return Policy(name), nil
	case "":
		return PolicyStateful, nil
	default:
		return "", errs.Configf("unknown signal policy %q (must be stateful or vectorized)", name)
	}
}

// MissingPolicy z-score 未定义时的处理方式
type MissingPolicy string

const (
	// MissingHold 保持前一日持仓
	MissingHold MissingPolicy = "hold"
	// MissingFlat 强制平仓
	MissingFlat MissingPolicy = "flat"
)

// ParseMissingPolicy 解析未定义 z-score 的处理方式
func ParseMissingPolicy(name string) (MissingPolicy, error) {
	switch MissingPolicy(name) {
	case MissingHold, MissingFlat:
		return MissingPolicy(name), nil
	case "":
		return MissingHold, nil
	default:
		return "", errs.Configf("unknown missing z-score policy %q (must be hold or flat)", name)
	}
}

// Params 状态机参数
type Params struct {
	ZEntry  float64
	ZExit   float64
	Policy  Policy
	Missing MissingPolicy
}

// DefaultParams z_entry=2, z_exit=0.5，带记忆，缺失时保持
func DefaultParams() Params {
	return Params{
		ZEntry:  2.0,
		ZExit:   0.5,
		Policy:  PolicyStateful,
		Missing: MissingHold,
	}
}

// Validate 要求 z_entry > 0 且 0 <= z_exit < z_entry
func (p Params) Validate() error {
	if !(p.ZEntry > 0) {
		return errs.Configf("z_entry must be > 0, got %v", p.ZEntry)
	}
	if !(p.ZExit >= 0) {
		return errs.Configf("z_exit must be >= 0, got %v", p.ZExit)
	}
	if p.ZExit >= p.ZEntry {
		return errs.Configf("z_exit (%v) must be below z_entry (%v)", p.ZExit, p.ZEntry)
	}
	if _, err := ParsePolicy(string(p.Policy)); err != nil {
		return err
	}
	if _, err := ParseMissingPolicy(string(p.Missing)); err != nil {
		return err
	}
	return nil
}
