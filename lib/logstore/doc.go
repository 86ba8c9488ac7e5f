/*
Package logstore implements the append-only command log of the server.

Every processed command is recorded as an Entry (timestamp plus the command
text without its leading '#'). The log is kept in memory and mirrored to a flat
text file:

	<N>
	<YYYYMMDD_HHMMSS>#<command text>
	...

The first line holds the number of entries, exactly N entry lines follow.
A file violating this format is read as an empty log and a warning is logged.

Every append rewrites the whole file (count header plus every entry). The
rewrite goes to a temporary file in the same directory which then replaces
the log file, so readers never see a half written log. Appends are serialized
by a mutex owned by the LogStore.

Usage:

	logs := logstore.Open("LogsOfQueries.txt")
	defer logs.Close()

	entry, err := logs.Append("#select|7")
	fmt.Println(entry.Format()) // 2024-05-01 12:00:00 - command: select|7
*/
package logstore
