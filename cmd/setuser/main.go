// setuser: session-scoped identity impersonation with a tamper-evident
// audit trail. All commands live in internal/cli; this is the single
// binary entrypoint.
package main

import "github.com/crunchyericford/set-user/internal/cli"

func main() {
	cli.Execute()
}
