// Package config loads and watches the exporter configuration file.
//
// Top-level types:
//   - Config{Exporter} — full config tree parsed from YAML
//   - ExporterConfig — container, listen_addr, docker_path, status_command,
//     log_window, log_stream, command_timeout, hostname, log_level, auth
//   - AuthConfig — mode (apikey|none), header, key_env; Key() resolves the
//     key from the environment
//
// Load(path) loads ./.env when present, reads the YAML file (an empty path
// skips it), applies defaults (container "quilibrium", :5001, 5m log window,
// 10s command timeout), applies QUILMON_* environment overrides, then
// validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It watches the parent directory so
// the rename→create pattern used by atomic-save editors (vim, VS Code) keeps
// triggering reloads.
package config
