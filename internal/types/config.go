package types

type RunMode string

const (
	// ModeLocal runs the API server, the webhook consumer and the sweep worker in one process
	ModeLocal RunMode = "local"
	// ModeAPI is the mode for running just the API server
	ModeAPI RunMode = "api"
	// ModeConsumer is the mode for running just the webhook delivery consumer
	ModeConsumer RunMode = "consumer"
	// ModeTemporalWorker runs the scheduled sweep workflows
	ModeTemporalWorker RunMode = "temporal_worker"
	// ModeAWSLambdaAPI serves the API through API Gateway proxy events
	ModeAWSLambdaAPI RunMode = "aws_lambda_api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LockerType selects the per subscription lock implementation
type LockerType string

const (
	// LockerTypeMemory serializes within one process only
	LockerTypeMemory LockerType = "memory"
	// LockerTypePostgres uses session advisory locks and serializes across replicas
	LockerTypePostgres LockerType = "postgres"
)
