package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Row holds the spatial statistics of one output time.
type Row struct {
	Time  float64 `json:"time"`
	UMean float64 `json:"u_mean"`
	VMean float64 `json:"v_mean"`
	UStd  float64 `json:"u_std"`
	VStd  float64 `json:"v_std"`
	UMin  float64 `json:"u_min"`
	UMax  float64 `json:"u_max"`
	VMin  float64 `json:"v_min"`
	VMax  float64 `json:"v_max"`
}

// Table is one Row per output time, in time order.
type Table []Row

// Columns lists the column names in persisted order.
var Columns = []string{"time", "u_mean", "v_mean", "u_std", "v_std", "u_min", "u_max", "v_min", "v_max"}

// Values returns the row in Columns order.
func (r Row) Values() []float64 {
	return []float64{r.Time, r.UMean, r.VMean, r.UStd, r.VStd, r.UMin, r.UMax, r.VMin, r.VMax}
}

// RowFromValues is the inverse of Values.
func RowFromValues(v []float64) (Row, error) {
	if len(v) != len(Columns) {
		return Row{}, fmt.Errorf("analysis: row has %d values, want %d", len(v), len(Columns))
	}
	return Row{
		Time: v[0], UMean: v[1], VMean: v[2], UStd: v[3], VStd: v[4],
		UMin: v[5], UMax: v[6], VMin: v[7], VMax: v[8],
	}, nil
}

// Column extracts a single named column.
func (t Table) Column(name string) ([]float64, error) {
	idx := -1
	for i, c := range Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("analysis: unknown column %q", name)
	}

	out := make([]float64, len(t))
	for i, r := range t {
		out[i] = r.Values()[idx]
	}
	return out, nil
}

// Reduce computes one Row per output time. Standard deviations are
// population (ddof = 0) over the n² grid points.
func Reduce(times []float64, u, v [][]float64) Table {
	table := make(Table, len(times))
	for k, t := range times {
		uMean, uStd := stat.PopMeanStdDev(u[k], nil)
		vMean, vStd := stat.PopMeanStdDev(v[k], nil)
		table[k] = Row{
			Time:  t,
			UMean: uMean,
			VMean: vMean,
			UStd:  uStd,
			VStd:  vStd,
			UMin:  floats.Min(u[k]),
			UMax:  floats.Max(u[k]),
			VMin:  floats.Min(v[k]),
			VMax:  floats.Max(v[k]),
		}
	}
	return table
}
