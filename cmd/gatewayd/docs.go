package main

// General API documentation for swaggo. Run `swag init -g cmd/gatewayd/docs.go`
// to regenerate docs.
//
// @title           gatewayd API
// @version         1.0
// @description     Adaptive request gateway for local LLM inference backends: response caching, request coalescing and multi-signal model routing.
//
// @contact.name   gatewayd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
