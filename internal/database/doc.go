// Package database provides SQLite connectivity and the state store.
//
// Uses database/sql with the mattn/go-sqlite3 driver and an ordered DDL slice
// for migrations. Store implements domain.StateStore; all mutations run
// through InTx so a transaction either fully commits or has no visible
// effect. Encryption and notifications happen above this layer.
package database
