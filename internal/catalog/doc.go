// Package catalog provides the built-in modules and assembles compiled
// application definitions into composition roots.
//
// Built-ins:
//
//	select   control "choice"                      output "value"
//	text     control "text"                        output "value"
//	counter  control "increment", target "display" output "count"
//	summary  reactive "source", target "summary"   output "length"
//	filter   embeds select as "pick", reactive "items",
//	         target "result"                       output "matches"
//
// A filter mounted as "f" exposes its pick control as "f.pick.choice".
package catalog
