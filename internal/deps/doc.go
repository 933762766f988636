// Package deps checks for the external programs lwectl drives: the renderer
// behind the engine script and systemctl for the login service.
package deps
