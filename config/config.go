package config

import (
	"embed"
)

// monitor config
//
//go:embed default.config.yml
var DefaultConfigYml string

// subgraph queries
//
//go:embed queries/*.graphql
var QueryFiles embed.FS
