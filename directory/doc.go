// Package directory resolves users into principals for the auth service.
//
// [Static] keeps users in memory and is meant for development and tests.
// [Postgres] reads the "user" and user_hotel tables through pgxpool. Both
// verify bcrypt password hashes; neither creates or changes them.
package directory
