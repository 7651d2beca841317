// Package server hosts the Fiber diagnostics service: request ID middleware,
// recover handling and the error-to-status mapping shared by the routes
// package. Routes themselves live in server/routes and are attached by the CLI
// after NewApp, so keep exports narrow and accept explicit dependencies.
package server
