// Package config loads rxbind configuration files.
//
// Configuration is read from rxbind.json, rxbind.yaml or rxbind.yml. Every
// field is optional; missing values take the defaults below.
//
// # Configuration File Structure
//
//	throttle_ms: 50
//	max_wait_ms: 250
//	source:
//	  batch_size: 20
//	  min: -10000
//	  max: 10000
//	  interval_ms: 10
//	server:
//	  address: ":8080"
//	  read_buffer: 1024
//	  write_buffer: 4096
//	  write_timeout_ms: 5000
//	  dispatch_queue: 256
//	log:
//	  level: info
//	  format: text
//	metrics:
//	  namespace: rxbind
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    errors.Fprint(os.Stderr, err)
//	    os.Exit(1)
//	}
//
//	fmt.Println("Throttle:", cfg.Throttle())
package config
