// Package web carries the embedded chat UI served at the root path.
package web

import _ "embed"

//go:embed index.html
var Index []byte
