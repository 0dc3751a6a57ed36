// Package cli is the dailysync command-line client.
//
// Every command runs against the local SQLite store first and talks to
// the remote store best-effort:
//
//	dailysync login u1                   save owner id and access token
//	dailysync save today bbt=97.9 mood=calm symptoms=cramps,headache
//	dailysync load 2025-01-10            reconcile and print one day
//	dailysync range 2025-01-01 2025-01-31
//	dailysync delete 2025-01-10
//	dailysync sync [--watch]             push pending records with retry
//	dailysync push                       push pending records in batches
//	dailysync migrate [--dry-run]        copy legacy documents
//	dailysync status
//
// Configuration comes from defaults, a JSON or YAML file (-c) and flags;
// see package config.
package cli
