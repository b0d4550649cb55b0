/*
Package dbtest spins up database containers for tests. It wraps testcontainers-go
with the defaults the mirror tests share, so individual tests only deal with a
ready driver and a fresh database.

Reach for the testcontainers-go modules directly when a test depends on a
specific customisation of the database.

When a test fails while developing locally with Docker, the container can be
kept alive for manual inspection:

	go test ./neo4jmirror -dbtest.inspect

This package is intended for tests only.
*/
package dbtest
