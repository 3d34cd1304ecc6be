// Package configs holds the default bank registry and commission rate table
// compiled into the binaries.
package configs

import _ "embed"

//go:embed banks.yaml
var Banks []byte

//go:embed commission_rates.yaml
var Rates []byte
