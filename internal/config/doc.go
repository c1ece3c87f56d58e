// Package config assembles the dripd configuration from the environment.
//
// Each infrastructure package owns its own Config struct and env tags; this
// package nests them into one Config, adds the engine settings under Drip and
// validates combinations such as the store driver and its connection settings.
package config
