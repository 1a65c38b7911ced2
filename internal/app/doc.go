// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle, decoupled
// from any specific entrypoint like a CLI or server.
//
// An App is built from a validated Config. Construction loads the template
// manifests and bundles and wires the fetcher; Run then performs whatever the
// configuration asks for, in a fixed order: write a bundle, list templates,
// render one template, and finally serve templates over HTTP until the
// context is cancelled.
package app
