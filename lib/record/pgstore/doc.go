/*
Package pgstore implements record.IRecordStore on PostgreSQL using a pgx
connection pool.

The database must already exist, the movies table is created on open.
Ids are BIGSERIAL values, non numeric ids are never found.
*/
package pgstore
