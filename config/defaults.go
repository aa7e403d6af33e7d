package config

// Default values
const (
	defaultReconcileMS  = 50
	defaultPositionMS   = 20
	defaultQueueSize    = 256
	defaultEventBuffer  = 64
	defaultRemoteListen = "127.0.0.1:53000"
	defaultMetrics      = "127.0.0.1:9464"
	defaultJournalPath  = "~/.local/share/cueforge/journal.db"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: Engine{
			ReconcileMS: defaultReconcileMS,
			PositionMS:  defaultPositionMS,
			QueueSize:   defaultQueueSize,
			EventBuffer: defaultEventBuffer,
		},
		Remote: Remote{
			Listen: defaultRemoteListen,
		},
		Journal: Journal{
			Path: defaultJournalPath,
		},
		Metrics: Metrics{
			Listen: defaultMetrics,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
