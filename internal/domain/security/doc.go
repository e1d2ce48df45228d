// Package security implements the static policy checks every module must
// pass before it may be activated.
//
// Checks (each reports its own violation kind):
//   - identity: id shape and reserved words
//   - path: every file stays inside the module directory
//   - content: no native executables
//   - descriptor: exactly one descriptor file; declared schema file present
//   - permission: <id>.<resource>.<action> under the module's own namespace,
//     and every permission referenced by a route or navigation entry is declared
//   - table: well-formed names, no collision with another validated or active module
//   - dependency: every dependency is known and not removed
//   - version: valid semver, host version accepted
//   - route: absolute paths, no traversal, known HTTP methods
//   - markup: names and navigation labels are plain text
//
// Validation is pure: it reads its inputs and never touches the store.
package security
