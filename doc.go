// Package weft turns a declarative YAML workflow document into a running
// multi-step application: a pipeline of components executed per session, a
// wizard UI definition served to a generic frontend, and a thin HTTP boundary
// for session lifecycle and step submission.
//
// A minimal embedding:
//
//	rt, err := weft.Load("workflow.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", rt.Handler())
//
// Sessions live in memory by default; pass WithStore to persist them in
// Redis. Component handlers are a closed set (invoke-workflow, accept-file,
// map-collection, set-state, branch) extensible through WithComponent.
package weft
