// Package flow loads the flow table that drives the scripted persona dialogs.
//
// Tables are YAML documents with persona entries and an ordered list of
// steps. The default table ships embedded in the binary; a file can replace
// it at startup.
package flow
