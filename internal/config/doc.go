// Package config loads edgefleet.yaml: registry and bundle locations, SSH
// retry policy, master bootstrap settings, monitoring, HTTP and backup
// settings.
//
// [Load] starts from [Default], overlays the YAML file, then applies
// EDGEFLEET_* environment overrides (see [ApplyEnv]) before validating.
package config
