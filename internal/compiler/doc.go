// Package compiler turns CUE application definitions into ir.AppSpec and
// checks them against a module registry before any session is opened.
//
// An application lives under the top-level "app" field:
//
//	app: {
//		name: "explorer"
//		instances: {
//			dataset: {module: "select", config: {label: "Dataset", choices: ["iris", "mtcars"]}}
//			view: {module: "summary", config: {title: "Current"}, args: {source: {ref: "dataset.value"}}}
//		}
//	}
//
// config holds static arguments; args holds reactive bindings to outputs
// of other instances.
package compiler
