// Package instances defines the instance model shared by the reconciler,
// the worker implementation and the supervisor.
//
// An instance is identified by the absolute path of its own settings file
// (Identity). Its alias is a display label that may change between reloads
// without restarting the worker. Committed instances live in a Registry,
// which is replaced wholesale by the reconciler so readers always observe
// either the previous or the next complete set.
package instances
