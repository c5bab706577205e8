package neat

import (
	"fmt"
	"math"
	"sort"
)

// ActivationType is a node's transfer function.
type ActivationType func(x float64) float64

// AggregationType folds the weighted inputs of a node into one value.
type AggregationType func(inputs []float64) float64

// ActivationFunctions maps the names accepted by activation_options to functions.
var ActivationFunctions = map[string]ActivationType{
	"sigmoid": func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp(-clamp(5.0*x, -60, 60)))
	},
	"tanh": func(x float64) float64 {
		return math.Tanh(clamp(2.5*x, -60, 60))
	},
	"relu":     func(x float64) float64 { return math.Max(0, x) },
	"identity": func(x float64) float64 { return x },
	"clamped":  func(x float64) float64 { return clamp(x, -1, 1) },
	"gaussian": func(x float64) float64 {
		x = clamp(x, -3.4, 3.4)
		return math.Exp(-5.0 * x * x)
	},
	"abs": math.Abs,
	"sin": func(x float64) float64 { return math.Sin(clamp(5.0*x, -60, 60)) },
	"inv": func(x float64) float64 {
		if x == 0 {
			return 0
		}
		return 1.0 / x
	},
	"log": func(x float64) float64 { return math.Log(math.Max(1e-7, x)) },
	"exp": func(x float64) float64 { return math.Exp(clamp(x, -60, 60)) },
	"hat": func(x float64) float64 { return math.Max(0, 1-math.Abs(x)) },
	"square": func(x float64) float64 {
		return x * x
	},
	"cube": func(x float64) float64 {
		return x * x * x
	},
}

// AggregationFunctions maps the names accepted by aggregation_options to functions.
var AggregationFunctions = map[string]AggregationType{
	"sum": Sum,
	"product": func(inputs []float64) float64 {
		p := 1.0
		for _, v := range inputs {
			p *= v
		}
		return p
	},
	"min": func(inputs []float64) float64 {
		if len(inputs) == 0 {
			return 0
		}
		return MinFloat(inputs)
	},
	"max": func(inputs []float64) float64 {
		if len(inputs) == 0 {
			return 0
		}
		return MaxFloat(inputs)
	},
	"maxabs": func(inputs []float64) float64 {
		best := 0.0
		for _, v := range inputs {
			if math.Abs(v) > math.Abs(best) {
				best = v
			}
		}
		return best
	},
	"mean": Mean,
	"median": func(inputs []float64) float64 {
		if len(inputs) == 0 {
			return 0
		}
		return Median(inputs)
	},
}

// GetActivation retrieves an activation function by name.
func GetActivation(name string) (ActivationType, error) {
	if fn, ok := ActivationFunctions[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown activation function: %s", name)
}

// GetAggregation retrieves an aggregation function by name.
func GetAggregation(name string) (AggregationType, error) {
	if fn, ok := AggregationFunctions[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown aggregation function: %s", name)
}

// ActivationNames lists the registered activation functions in sorted order.
func ActivationNames() []string {
	names := make([]string, 0, len(ActivationFunctions))
	for n := range ActivationFunctions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
