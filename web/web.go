// Package web embeds the browser client served at / and /static.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var assets embed.FS

// Asset returns the content of a file under static/, e.g. "css/style.css".
func Asset(name string) ([]byte, error) {
	return fs.ReadFile(assets, "static/"+name)
}
