package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	featapi "featsel/pkg/featsel"
)

func loadRunRequestFromConfig(path string) (featapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return featapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return featapi.RunRequest{}, err
	}

	var (
		req  featapi.RunRequest
		errs []error
	)
	field := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	field(stringField(raw, "run_id", &req.RunID))
	field(stringField(raw, "data_path", &req.DataPath))
	if v, present := raw["synthetic"]; present {
		synthetic, ok := v.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("synthetic: must be an object"))
		} else {
			nested := func(err error) {
				if err != nil {
					errs = append(errs, fmt.Errorf("synthetic.%w", err))
				}
			}
			nested(intField(synthetic, "rows", &req.SyntheticRows))
			nested(intField(synthetic, "features", &req.SyntheticFeatures))
			nested(intField(synthetic, "informative", &req.SyntheticInformative))
			nested(floatField(synthetic, "noise", &req.SyntheticNoise))
		}
	}
	field(intField(raw, "population_size", &req.PopulationSize))
	field(intField(raw, "generations", &req.Generations))
	if _, present := raw["elite_size"]; present {
		var elite int
		if err := intField(raw, "elite_size", &elite); err != nil {
			errs = append(errs, err)
		} else {
			req.EliteSize = &elite
		}
	}
	field(intField(raw, "tournament_size", &req.TournamentSize))
	if _, present := raw["crossover_rate"]; present {
		var rate float64
		if err := floatField(raw, "crossover_rate", &rate); err != nil {
			errs = append(errs, err)
		} else {
			req.CrossoverRate = &rate
		}
	}
	if _, present := raw["mutation_rate"]; present {
		var rate float64
		if err := floatField(raw, "mutation_rate", &rate); err != nil {
			errs = append(errs, err)
		} else {
			req.MutationRate = &rate
		}
	}
	field(int64Field(raw, "seed", &req.Seed))
	field(floatField(raw, "test_fraction", &req.TestFraction))
	field(boolField(raw, "skip_plots", &req.SkipPlots))

	if err := errors.Join(errs...); err != nil {
		return featapi.RunRequest{}, err
	}
	return req, nil
}

// The field helpers leave dst untouched when key is absent and fail when the
// value has the wrong type.

func stringField(raw map[string]any, key string, dst *string) error {
	v, present := raw[key]
	if !present {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%s: must be a string, got %v", key, v)
	}
	*dst = s
	return nil
}

func boolField(raw map[string]any, key string, dst *bool) error {
	v, present := raw[key]
	if !present {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("%s: must be a boolean, got %v", key, v)
	}
	*dst = b
	return nil
}

func floatField(raw map[string]any, key string, dst *float64) error {
	v, present := raw[key]
	if !present {
		return nil
	}
	x, ok := v.(float64)
	if !ok {
		return fmt.Errorf("%s: must be a number, got %v", key, v)
	}
	*dst = x
	return nil
}

func intField(raw map[string]any, key string, dst *int) error {
	v, present := raw[key]
	if !present {
		return nil
	}
	x, err := asInteger(key, v)
	if err != nil {
		return err
	}
	if x < math.MinInt || x > math.MaxInt {
		return fmt.Errorf("%s: %d is out of range", key, x)
	}
	*dst = int(x)
	return nil
}

func int64Field(raw map[string]any, key string, dst *int64) error {
	v, present := raw[key]
	if !present {
		return nil
	}
	x, err := asInteger(key, v)
	if err != nil {
		return err
	}
	*dst = x
	return nil
}

// asInteger accepts JSON numbers with no fractional part.
func asInteger(name string, v any) (int64, error) {
	x, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s: must be an integer, got %v", name, v)
	}
	if x != math.Trunc(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("%s: must be an integer, got %v", name, x)
	}
	if x < math.MinInt64 || x >= math.MaxInt64 {
		return 0, fmt.Errorf("%s: %v is out of range", name, x)
	}
	return int64(x), nil
}

// overrideFromFlags copies the named flag values onto req.
func overrideFromFlags(req *featapi.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "data":
			req.DataPath = v.(string)
		case "rows":
			req.SyntheticRows = v.(int)
		case "features":
			req.SyntheticFeatures = v.(int)
		case "informative":
			req.SyntheticInformative = v.(int)
		case "noise":
			req.SyntheticNoise = v.(float64)
		case "pop":
			req.PopulationSize = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "elite":
			elite := v.(int)
			req.EliteSize = &elite
		case "tournament":
			req.TournamentSize = v.(int)
		case "crossover":
			rate := v.(float64)
			req.CrossoverRate = &rate
		case "mutation":
			rate := v.(float64)
			req.MutationRate = &rate
		case "seed":
			req.Seed = v.(int64)
		case "test-fraction":
			req.TestFraction = v.(float64)
		case "no-plots":
			req.SkipPlots = v.(bool)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (featapi.RunRequest, error) {
	if configPath == "" {
		return featapi.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return featapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
