// Package pgstore is the PostgreSQL datastore of the admin portal.
//
// It implements the account store ([Users]), the authoritative session
// store with admin listing ([Sessions]), single-use reset tokens
// ([Resets]), the system settings table ([SystemConfig]) and the admin
// action log ([AdminLog]). Every repository takes a [DBTX] so it can run
// on a *sql.DB or inside [WithTx].
//
// The schema lives in embedded goose migrations applied by [Migrate].
package pgstore
