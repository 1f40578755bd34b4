// SPDX-License-Identifier: MPL-2.0

// Package store persists the network settings edited by the console's
// netconfig command. Two backends exist: a TOML file and a bbolt database.
package store
