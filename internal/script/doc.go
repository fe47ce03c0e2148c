// Package script hosts guest Lua scripts for an application.
//
// The Registry discovers source files below a root directory, compiles
// each into its own isolated interpreter session, and routes named event
// calls from host code to the callables guest scripts registered. The
// Instance owns one session for one source file and enforces the error
// containment boundary: a guest failure of any kind reduces to a logged
// diagnostic and a false result, never a host fault, and never affects
// another script's availability.
//
// # Directory convention
//
// The root holds script sources directly and/or in nested subdirectories.
// Any subdirectory whose name contains "libs" (case-insensitive) is
// excluded from script discovery, but contributes a "<dir>/<libsdir>/?.lua"
// pattern to the module search path of every script in its parent
// directory and below it. Module resolution during compilation therefore
// sees the library paths of the script's own directory and of all
// ancestors on the traversal path, never of sibling subtrees.
//
// # Guest surface
//
// Every script is loaded with three global bindings:
//
//	RegisterEvent(name, fn)  -- publish an event callable to the host
//	Debug.Log(msg)           -- also LogWarning, LogError; tagged by script
//	App.ReadText(path)       -- also WriteText, AppendText, WriteJson, UpdateJson
//
// Example script:
//
//	RegisterEvent("greet", function(args)
//	    Debug.Log("hello " .. (args.who or "world"))
//	    return "ok"
//	end)
//
// Host code then calls:
//
//	out, ok := reg.TryCallEvent("myscript", "greet", script.Args{"who": "dev"})
//
// # Concurrency
//
// Each instance serializes access to its own interpreter session, so two
// different scripts may be invoked concurrently from different goroutines.
// The registry map is internally guarded. Every event call receives a
// freshly allocated argument table; there is no shared reusable empty
// table. No timeout or cancellation applies to guest code: a
// non-terminating event call blocks its calling goroutine.
//
// # What this package does not do
//
// Guest code is not sandboxed against resource exhaustion, filesystem
// traversal, or infinite loops. The App surface can address any path the
// host process can.
package script
