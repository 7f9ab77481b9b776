// Package database provides PostgreSQL connectivity and repositories.
//
// Uses pgx for connection pooling and tern for migrations. Repositories
// implement domain interfaces: ProfileRepository, ProxyRepository,
// AssignmentRepository. Assignment mutations run inside single transactions
// so the 1:1 profile/proxy invariants hold under concurrent requests.
package database
