// Package config loads, normalizes, and validates lwectl controller settings.
//
// These settings describe the controller itself: where the state document and
// data directory live, which backend executable to drive, how long a graceful
// stop may take, and how logs are written. The wallpaper state document (mode
// flags, pool, groups, keybindings) is owned by the state package instead.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
