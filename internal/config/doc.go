// Package config handles configuration loading for spark-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. --config flag
//  2. Path from SPARK_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/spark/gateway.yaml
//  4. ~/.config/spark/gateway.yaml
//
// Files ending in .toml are parsed as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${SPARK_JWT_SECRET}"
//
// Unset variables expand to the empty string. `spark-gateway serve
// --env-file .env` loads a dotenv file before expansion.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8484"   # ignored when tailscale is enabled
//
//	tailscale:
//	  enabled: false
//	  hostname: "spark-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
//	database:
//	  path: "~/.local/share/spark/gateway.db"
//
//	auth:
//	  jwt_secret: "${SPARK_JWT_SECRET}"   # empty disables /api auth
//
//	gateway:
//	  request_timeout: "5s"
//	  referer: "https://github.com/breitburg/claude-for-pebble"
//	  strip_markdown: false
//	  max_response_bytes: 1048576
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Provider settings (API key, model, and so on) are not part of this file.
// They are written by the configuration page into the database.
package config
