// Package commands defines the storefront developer CLI.
//
// Commands
//
//   - migrate            Bring the local state database up to date
//   - discover           Locate the GraphQL backend by probing local ports
//   - token issue        Sign a development JWT
//   - token save|show    Keep a token encrypted in the state database
//   - cart ...           Inspect and edit the local single-vendor cart
//   - timeline ORDER_ID  Print an order's status timeline
//   - watch ORDER_ID     Follow an order over a GraphQL subscription
//
// # Implementation
//
// The root command opens the SQLite state file and builds the backend client
// before any subcommand runs. Nothing touches the network until a command
// needs the backend.
package commands
