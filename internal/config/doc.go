// Package config loads and watches the scene configuration file.
//
// Top-level types:
//   - Config{Scene, Nodes, Server, Alerts}: full tree parsed from YAML
//   - Scene: time_unit or fps, linear_unit, start/end frame. FrameDuration()
//     and DistancePerUnit() resolve the two constants every node needs
//   - Node: id, enabled, mode (matrix|distance), unit (km/h|mph|m/s|f/s) and
//     the optional matrix/distance channels; an absent channel is an
//     unconnected input
//   - Channel/Key: keyframes with linear|step interpolation and
//     constant|strict infinity
//   - ServerConfig, AlertsConfig: serve-mode settings
//
// Load(path) reads the YAML file, applies defaults (film 24 fps, centimetres,
// frames 1–120, matrix mode, km/h, port 8080, 5m cache TTL), then validates
// units, modes and key shapes so bad values are rejected before any
// evaluation runs.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after each
// event to survive the rename→create pattern used by atomic-save editors.
package config
