// Package setuser provides a Go client for the set-user session API. It
// opens impersonation sessions, switches identities for bounded windows,
// and runs statements through the server's enforcement pipeline. Every
// transition lands in the server's hash-chained audit log.
//
// Usage:
//
//	su, err := setuser.New(setuser.WithBaseURL("http://127.0.0.1:8093"))
//	sess, err := su.OpenSession(ctx, "admin")
//	defer sess.Close(ctx)
//
//	_, err = sess.SetUser(ctx, "alice") // returns "OK"
//	res, err := sess.Exec(ctx, "SELECT count(*) FROM orders")
//	_, err = sess.Reset(ctx)
//
// Statements refused during a window surface as *BlockedError; guard
// refusals (stacked switches, unknown principals) surface as *APIError.
// Importers depend only on this package, never on server internals.
package setuser
