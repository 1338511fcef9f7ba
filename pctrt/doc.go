// Package pctrt is the support package imported by code that pct generates.
//
// Generated units call Decode to rebuild captured attribute values, call
// Unknown where a value could not be captured, embed PreCompiledTemplate (or
// the unit of their parent template) and register themselves from init so a
// renderer can find them by template name:
//
//	t, ok := pctrt.Lookup("blog/post.html")
//	if ok {
//	    list, _ := t.RenderBlock("content", nil)
//	    ...
//	}
package pctrt
