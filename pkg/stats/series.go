package stats

import (
	"fmt"
	"time"
)

// Series 按日期索引的不可变序列
type Series struct {
	Name   string
	dates  []time.Time
	values []float64
}

// NewSeries 创建序列（复制输入，调用方后续修改不影响序列）
func NewSeries(name string, dates []time.Time, values []float64) (*Series, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("series %s: %d dates but %d values", name, len(dates), len(values))
	}

	s := &Series{
		Name:   name,
		dates:  make([]time.Time, len(dates)),
		values: make([]float64, len(values)),
	}
	copy(s.dates, dates)
	copy(s.values, values)
	return s, nil
}

// Len 返回数据点数量
func (s *Series) Len() int {
	return len(s.values)
}

// At 返回第 i 个值
func (s *Series) At(i int) float64 {
	return s.values[i]
}

// Date 返回第 i 个日期
func (s *Series) Date(i int) time.Time {
	return s.dates[i]
}

// Values 返回值的副本
func (s *Series) Values() []float64 {
	result := make([]float64, len(s.values))
	copy(result, s.values)
	return result
}

// Dates 返回日期的副本
func (s *Series) Dates() []time.Time {
	result := make([]time.Time, len(s.dates))
	copy(result, s.dates)
	return result
}

// Last 获取最新的数据点
func (s *Series) Last() (float64, bool) {
	if len(s.values) == 0 {
		return 0, false
	}
	return s.values[len(s.values)-1], true
}

// Frame 共享同一日期索引的命名序列集合
// With 返回新的 Frame，原 Frame 不变
type Frame struct {
	dates  []time.Time
	names  []string
	series map[string][]float64
}

// NewFrame 创建只有日期索引的 Frame
func NewFrame(dates []time.Time) *Frame {
	f := &Frame{
		dates:  make([]time.Time, len(dates)),
		series: make(map[string][]float64),
	}
	copy(f.dates, dates)
	return f
}

// With 添加（或替换）一列，返回新的 Frame
func (f *Frame) With(name string, values []float64) (*Frame, error) {
	if len(values) != len(f.dates) {
		return nil, fmt.Errorf("frame column %s: %d values for %d dates", name, len(values), len(f.dates))
	}

	next := &Frame{
		dates:  f.dates,
		names:  make([]string, 0, len(f.names)+1),
		series: make(map[string][]float64, len(f.series)+1),
	}
	for _, n := range f.names {
		if n == name {
			continue
		}
		next.names = append(next.names, n)
		next.series[n] = f.series[n]
	}

	col := make([]float64, len(values))
	copy(col, values)
	next.names = append(next.names, name)
	next.series[name] = col
	return next, nil
}

// MustWith 与 With 相同，长度不匹配时 panic
func (f *Frame) MustWith(name string, values []float64) *Frame {
	next, err := f.With(name, values)
	if err != nil {
		panic(err)
	}
	return next
}

// Get 获取列（返回副本）
func (f *Frame) Get(name string) ([]float64, bool) {
	col, ok := f.series[name]
	if !ok {
		return nil, false
	}
	result := make([]float64, len(col))
	copy(result, col)
	return result, true
}

// Series 以 Series 形式获取列
func (f *Frame) Series(name string) (*Series, bool) {
	col, ok := f.series[name]
	if !ok {
		return nil, false
	}
	s, _ := NewSeries(name, f.dates, col)
	return s, true
}

// Dates 返回日期索引的副本
func (f *Frame) Dates() []time.Time {
	result := make([]time.Time, len(f.dates))
	copy(result, f.dates)
	return result
}

// Names 按添加顺序列出所有列名
func (f *Frame) Names() []string {
	result := make([]string, len(f.names))
	copy(result, f.names)
	return result
}

// Len 返回行数
func (f *Frame) Len() int {
	return len(f.dates)
}
