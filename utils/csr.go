package utils

import "fmt"

/*
CSRTable is the paired (starts, flattened-values) layout used for all of the
variable-length per-row lists in this code: average groups at brick seams,
per-brick extra point ranges, vertex to element adjacency and the grid-find
node number lists.

starts[i] is the offset of row i within values, starts[0] = 0, starts are
non-decreasing and the final start equals len(values).
*/
type CSRTable struct {
	Starts Index
	Values Index
}

func NewCSRTable(starts, values Index) (T CSRTable, err error) {
	if err = ValidateStarts(starts, len(values)); err != nil {
		return
	}
	T = CSRTable{Starts: starts, Values: values}
	return
}

func (T CSRTable) NumRows() int {
	return len(T.Starts) - 1
}

func (T CSRTable) Row(i int) Index {
	return T.Values[T.Starts[i]:T.Starts[i+1]]
}

// ValidateStarts checks a CSR offset array against the flattened storage
// length it indexes into.
func ValidateStarts(starts Index, valueCount int) error {
	if len(starts) == 0 {
		return fmt.Errorf("empty starts array")
	}
	if starts[0] != 0 {
		return fmt.Errorf("starts[0] = %d, must be 0", starts[0])
	}
	for i := 1; i < len(starts); i++ {
		if starts[i] < starts[i-1] {
			return fmt.Errorf("starts must be non-decreasing: starts[%d] = %d < starts[%d] = %d",
				i, starts[i], i-1, starts[i-1])
		}
	}
	if last := starts[len(starts)-1]; last != valueCount {
		return fmt.Errorf("final start = %d, must equal value count = %d", last, valueCount)
	}
	return nil
}
