package types

import "time"

// Config is a struct to hold the configuration data
type Config struct {
	Logging struct {
		OutputLevel  string `yaml:"outputLevel" envconfig:"LOGGING_OUTPUT_LEVEL"`
		OutputStderr bool   `yaml:"outputStderr" envconfig:"LOGGING_OUTPUT_STDERR"`

		FilePath  string `yaml:"filePath" envconfig:"LOGGING_FILE_PATH"`
		FileLevel string `yaml:"fileLevel" envconfig:"LOGGING_FILE_LEVEL"`
	} `yaml:"logging"`

	Network struct {
		RpcUrl         string `yaml:"rpcUrl" envconfig:"RPC_URL" validate:"omitempty,url"`
		SubgraphUrl    string `yaml:"subgraphUrl" envconfig:"SUBGRAPH_URL" validate:"omitempty,url"`
		QosSubgraphUrl string `yaml:"qosSubgraphUrl" envconfig:"QOS_SUBGRAPH_URL" validate:"omitempty,url"`
		StudioApiKey   string `yaml:"studioApiKey" envconfig:"STUDIO_API_KEY"`
		GatewayPayer   string `yaml:"gatewayPayer" envconfig:"GATEWAY_PAYER" validate:"omitempty,eth_addr"`

		RpcHeaders     map[string]string `yaml:"rpcHeaders"`
		RequestTimeout time.Duration     `yaml:"requestTimeout" envconfig:"NETWORK_REQUEST_TIMEOUT"`
		PageSize       int               `yaml:"pageSize" envconfig:"SUBGRAPH_PAGE_SIZE" validate:"gte=0,lte=1000"`
		RateLimit      float64           `yaml:"rateLimit" envconfig:"SUBGRAPH_RATE_LIMIT" validate:"gte=0"`
		RateBurst      int               `yaml:"rateBurst" envconfig:"SUBGRAPH_RATE_BURST" validate:"gte=0"`
	} `yaml:"network"`

	Contracts struct {
		HorizonStaking      string `yaml:"horizonStaking" envconfig:"HORIZON_STAKING_ADDRESS" validate:"omitempty,eth_addr"`
		SubgraphService     string `yaml:"subgraphService" envconfig:"SUBGRAPH_SERVICE_ADDRESS" validate:"omitempty,eth_addr"`
		DisputeManager      string `yaml:"disputeManager" envconfig:"DISPUTE_MANAGER_ADDRESS" validate:"omitempty,eth_addr"`
		GraphTallyCollector string `yaml:"graphTallyCollector" envconfig:"GRAPH_TALLY_COLLECTOR_ADDRESS" validate:"omitempty,eth_addr"`
	} `yaml:"contracts"`

	Migration struct {
		HorizonVersion string        `yaml:"horizonVersion" envconfig:"MIGRATION_HORIZON_VERSION"`
		VolumeWindow   time.Duration `yaml:"volumeWindow" envconfig:"MIGRATION_VOLUME_WINDOW"`
	} `yaml:"migration"`

	Prober struct {
		Timeout        time.Duration `yaml:"timeout" envconfig:"PROBER_TIMEOUT"`
		RetryCount     uint64        `yaml:"retryCount" envconfig:"PROBER_RETRY_COUNT"`
		RetryBaseDelay time.Duration `yaml:"retryBaseDelay" envconfig:"PROBER_RETRY_BASE_DELAY"`
	} `yaml:"prober"`

	Metrics struct {
		Host     string        `yaml:"host" envconfig:"METRICS_HOST"`
		Port     string        `yaml:"port" envconfig:"METRICS_PORT"`
		Interval time.Duration `yaml:"interval" envconfig:"METRICS_INTERVAL"`
	} `yaml:"metrics"`
}
