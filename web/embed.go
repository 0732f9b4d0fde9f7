// Package web embeds the browser UI so the binary ships self-contained.
package web

import "embed"

// StaticFS embeds static assets (html/css/js).
//
//go:embed static/*
var StaticFS embed.FS
