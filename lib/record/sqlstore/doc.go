/*
Package sqlstore implements record.IRecordStore on top of a SQLite database
file (driver github.com/mattn/go-sqlite3).

Records live in a single Movies table. Ids are the table's AUTOINCREMENT row
ids, so only positive integer ids can ever be found. The table is created on
open if it does not exist yet.

SQLite allows a single writer, the store therefore uses one connection and a
busy timeout instead of failing concurrent requests.
*/
package sqlstore
