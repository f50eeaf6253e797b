// Package template renders the user-configurable strings of botherd: the
// companion daemon arguments spawned per instance and the notification
// messages. Templates use text/template syntax with the sprig function set.
package template
