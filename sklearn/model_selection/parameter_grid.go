package model_selection

import (
	"sort"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// ParameterGrid expands a search space into the full cartesian product.
//
// Parameter names are sorted; values keep their declared order and the last
// name varies fastest. An empty space yields a single empty configuration.
func ParameterGrid(space map[string][]interface{}) ([]model.Params, error) {
	names := make([]string, 0, len(space))
	for name, values := range space {
		if len(values) == 0 {
			return nil, errors.NewValidationError(name, "search space has no values", values)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	total := 1
	for _, name := range names {
		total *= len(space[name])
	}

	grid := make([]model.Params, total)
	for i := range grid {
		p := make(model.Params, len(names))
		rem := i
		for k := len(names) - 1; k >= 0; k-- {
			values := space[names[k]]
			p[names[k]] = values[rem%len(values)]
			rem /= len(values)
		}
		grid[i] = p
	}
	return grid, nil
}
