// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/embedcli/config.cue (or the platform
// equivalent), then ./config.cue, unless an explicit file is given. Every file is
// validated against the embedded #Config schema before being merged over the defaults.
// Environment variables prefixed with EMBEDCLI_ override file values
// (EMBEDCLI_SSH_PORT overrides ssh.port).
package config
