package config

const (
	defaultDatabasePath        = "~/.local/share/scour/scour.db"
	defaultWorkerCount         = 4
	defaultBatchSize           = 10
	defaultStaleTimeoutSeconds = 300
	defaultScoreThreshold      = 0.7
	defaultMaxFileBytes        = 32 << 20
	defaultExportPageSize      = 500
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

func defaultExtensions() []string {
	return []string{
		".txt", ".md", ".markdown",
		".csv", ".tsv",
		".json", ".xml", ".html", ".htm",
		".log", ".eml",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			DatabasePath: defaultDatabasePath,
		},
		Workers: Workers{
			Count:               defaultWorkerCount,
			BatchSize:           defaultBatchSize,
			StaleTimeoutSeconds: defaultStaleTimeoutSeconds,
		},
		Discovery: Discovery{
			Extensions: defaultExtensions(),
		},
		Analyzer: Analyzer{
			ScoreThreshold: defaultScoreThreshold,
		},
		Extractor: Extractor{
			MaxFileBytes: defaultMaxFileBytes,
		},
		Export: Export{
			PageSize: defaultExportPageSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
