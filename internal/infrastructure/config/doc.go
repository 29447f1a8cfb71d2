// Package config handles loading and validating the field I/O core
// configuration.
//
// Loading order: defaults, then the YAML file, then GRAYLOGIC_* environment
// variables, then Validate.
//
// Besides the infrastructure sections (database, mqtt, api, websocket,
// influxdb, logging, security) the file carries:
//
//	fieldio:
//	  max_poll_fields: 10000   # per poll request
//	  history_queue: 1024      # recorder queue length
//	  event_queue: 256         # trigger dispatcher queue length
//	  history_retention: 720   # hours, 0 keeps history forever
//	drivers:                   # virtual variable drivers
//	  - moniker: vars
//	    fields:
//	      - {name: Setpoint, type: Float, access: RW, limits: "Range:5,35"}
//
// Driver declarations decode straight into driver.Declaration; field types,
// access modes and trigger kinds parse from their text names.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret has no default and must be at least 32 characters
//
// Usage:
//
//	cfg, err := config.Load("configs/fieldio.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
