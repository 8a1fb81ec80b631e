// Package config handles configuration loading for ovid-master and ovid-tools.
//
// # Overview
//
// A run works without any configuration file: Default() carries the timings
// the grading scripts were written against (3s settle, 120s watchdog, 1s
// pause after a crash). A file only needs the fields it changes.
//
// # Configuration File
//
// Resolution order:
//
//  1. Path from the -config flag
//  2. Path from the OVID_MASTER_CONFIG environment variable
//  3. Built-in defaults
//
// Files ending in .toml are decoded as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	agents:
//	  binary: "${OVID_BUILD}/process"
//
// # Duration Parsing
//
// Durations use time.ParseDuration syntax:
//
//	timing:
//	  settle: "3s"
//	  watchdog: "2m"
//	  crash_pause: "1s"
//	  cleanup_pause: "100ms"
//
// # Configuration Sections
//
//	agents:
//	  binary: "./process"        # spawned as <binary> <id> <host> <port>
//	  connect_host: "localhost"  # empty: use the start command's host
//	  crash_policy: "auto"       # auto, signal, message
//	  write_timeout: "5s"
//
//	cleanup:
//	  command: ["./stopall"]
//
//	shutdown:
//	  forced_exit_code: 0
//
//	lock:
//	  path: ".ovid-master.lock"
//
//	logging:
//	  level: "warn"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	grading:
//	  master: ["./ovid-master"]
//	  build: ["./build"]
//	  tests_dir: "tests"
//	  output_dir: "test_output"
//	  database: ".ovid/history.db"
//	  pause: "2s"
package config
