package kv

import "embed"

// Migrations holds the schema for the postgres backend.
//
//go:embed migrations/*.sql
var Migrations embed.FS
