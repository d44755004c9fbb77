package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is written by `dittodav config init`.
const sampleConfig = `# dittodav Configuration File
#
# Every value can be overridden with an environment variable:
#   DITTODAV_<SECTION>_<KEY>, e.g. DITTODAV_LOGGING_LEVEL=DEBUG

logging:
  level: INFO       # DEBUG, INFO, WARN, ERROR
  format: text      # text, json
  output: stdout    # stdout, stderr or a file path

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

shutdown_timeout: 30s

server:
  port: 8080
  read_header_timeout: 10s
  idle_timeout: 60s
  health: true      # serve /health, /health/ready and /health/stores

metrics:
  enabled: false
  port: 9090

lock:
  enabled: true
  persist: false    # badger needs database.path, postgres needs the postgres section
  backend: badger   # badger, postgres
  default_timeout: 10m
  max_timeout: 1h
  wait_timeout: 0s  # 0 fails conflicting requests immediately with 423
  max_locks: 100000

copier:
  initial_buffer: 64Ki
  max_buffer: 64Mi
  growth_threshold: 200ms

handler:
  mode: fastest     # fastest, generic
  overwrite_default: true

# database:
#   path: /var/lib/dittodav/state

# postgres:
#   host: localhost
#   port: 5432
#   database: dittodav
#   user: dittodav
#   password: secret
#   sslmode: disable

properties:
  type: memory      # memory, badger, sqlite, postgres
  # sqlite_path: /var/lib/dittodav/properties.db

remote:
  enabled: false
  # endpoints:
  #   - name: backup
  #     url: https://backup.example.com/dav/
  #     username: user
  #     password: secret

stores:
  default:
    type: memory
  # files:
  #   type: filesystem
  #   filesystem:
  #     path: /srv/dittodav
  # bucket:
  #   type: s3
  #   s3:
  #     bucket: my-bucket
  #     region: us-east-1

shares:
  - name: /
    store: default
`

// InitConfig writes the sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the sample configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
