package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// GenerationRecord is one row of per-generation run metrics.
type GenerationRecord struct {
	Generation int     `json:"generation"`
	Baseline   float64 `json:"baseline"`
	Best       float64 `json:"best"`
	Average    float64 `json:"average"`
	Entropy    float64 `json:"entropy"`
}

// RunRecord summarizes a finished optimization run.
type RunRecord struct {
	VersionedRecord
	ID               string  `json:"id"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	DataPath         string  `json:"data_path,omitempty"`
	ChromosomeLength int     `json:"chromosome_length"`
	PopulationSize   int     `json:"population_size"`
	EliteSize        int     `json:"elite_size"`
	TournamentSize   int     `json:"tournament_size"`
	CrossoverRate    float64 `json:"crossover_rate"`
	MutationRate     float64 `json:"mutation_rate"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Solution         string  `json:"solution"`
	SelectedFeatures int     `json:"selected_features"`
	SolutionRMSE     float64 `json:"solution_rmse"`
	BaselineRMSE     float64 `json:"baseline_rmse"`
	Evaluations      int     `json:"evaluations"`
	CacheHits        int     `json:"cache_hits"`
}
