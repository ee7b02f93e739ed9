package server

import "embed"

// distFS holds the placeholder shell served when no frontend build exists.
//
//go:embed all:dist
var distFS embed.FS

//go:embed client.js
var clientJS string
