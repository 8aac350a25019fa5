// Package cli — команды Nodeflow CLI поверх HTTP API.
package cli
