/*
Package protocol implements the text wire format spoken between client and
server.

A command is a single newline-free ASCII line:

	#<kind>|<field1>|<field2>|...

The kinds and their fields (in order) are:

	select  id
	update  title, director, releaseYear, description, genreId, id
	insert  title, director, releaseYear, description, genreId, id-placeholder
	delete  id

Only select has a response: the record fields joined with '|' in the order
title, director, releaseYear, description, genreId, id. An empty response
means the record does not exist. A command that can not be decoded is answered
with the literal text "Unknown command".

Field values must not contain the delimiters '|' and '#'. They are not
escaped.
*/
package protocol
