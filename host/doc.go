// Package host runs measure scripts on behalf of a polling host.
//
// A Manager owns the process-wide engine state: whether the runtime is
// started, how many measure contexts are alive and the base context. Every
// script-touching callback holds the execution lock for its whole body;
// managers of different engines share one lock via WithExecLock. A Loader turns a script path and class name into a script object or
// a typed load error. A Measure drives one script object through the host
// lifecycle (Reload, Update, Stringify, Command, Destroy) and owns the
// string buffer handed back on each poll.
package host
