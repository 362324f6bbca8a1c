// Package config loads radiowake configuration.
//
// Values are layered with viper: baseline defaults (Default), then an
// optional YAML file, then RADIOWAKE_* environment variables (dots in keys
// become underscores, e.g. RADIOWAKE_WAKE_DEFAULT_TIMEOUT=5s), then bound CLI
// flags. Load validates the merged result section by section.
package config
