// Package db embeds the SQL schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for the commerce tables (products, carts, orders,
// payments, users, api_keys). It is idempotent and safe to re-run.
//
//go:embed migrations/001_schema.sql
var Schema string
