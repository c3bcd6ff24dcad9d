package rls

import "embed"

// Migrations holds the goose migrations installing the tenant context
// functions and the tenants table. Pass it to pg.Migrate with MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"
