// Package config loads, normalizes, and validates ytwhisper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file when present, and honours
// environment fallbacks such as OPENAI_API_KEY and HF_TOKEN. The Config type
// centralizes every knob the CLI needs so output locations, backend
// credentials, and subtitle settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
