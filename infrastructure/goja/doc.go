// Package goja runs measure scripts written in JavaScript on the goja
// runtime.
//
// A script defines a class (by default Measure) whose methods the bridge
// calls:
//
//	class Measure {
//	    Reload(rm, maxValue) { this.unit = rm.RmReadString("Unit", "°C", true); }
//	    Update() { return 21.5; }
//	    GetString() { return `21.5${this.unit}`; }
//	    ExecuteBang(args) { rm.RmLog(rm.LOG_NOTICE, args); }
//	    Finalize() {}
//	}
//
// Every load runs in its own function scope, so reloading a script never
// collides with declarations from an earlier attempt. Scripts can require()
// other files found on the context search path.
package goja
